// Package cmd implements the challan CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/app"
	"github.com/derickschaefer/challan/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	APIToken    string
	BaseURL     string
	DBPath      string
	Dashboard   string
	Format      string
	Out         string
	Refresh     bool
	Timeout     string
	Concurrency int
	Rate        float64
	Quiet       bool
	Verbose     bool
	Debug       bool
}

// rootCmd is the base command. Running `challan` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "challan",
	Short: "challan: time ranges, report buckets and violation heatmaps",
	Long: `challan resolves dashboard time ranges, aggregates traffic-violation
reports into day/week/month buckets, and normalizes violation coordinates
into heatmap points and hotspots.

It works offline on JSONL piped through stdin, or against the reports
analytics API with results accumulated in a local database.

Quick start:
  challan config init                    # create a config.json
  challan range resolve 7d 90d ytd       # concrete windows for tokens
  cat reports.jsonl | challan bucket --granularity week
  challan fetch --dashboard dashboard.yaml
  challan serve                          # HTTP API on :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr())
	},
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging installs the default slog handler: WARN by default,
// INFO with --verbose, DEBUG with --debug.
func setupLogging(w io.Writer) {
	level := slog.LevelWarn
	switch {
	case globalFlags.Debug:
		level = slog.LevelDebug
	case globalFlags.Verbose:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(globalFlags.APIToken)
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Refresh = globalFlags.Refresh
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.BaseURL != "" {
		cfg.BaseURL = globalFlags.BaseURL
	}
	if globalFlags.DBPath != "" {
		cfg.DBPath = globalFlags.DBPath
	}
	if globalFlags.Dashboard != "" {
		cfg.DashboardPath = globalFlags.Dashboard
	}
	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("--timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if globalFlags.Concurrency > 0 {
		cfg.Concurrency = globalFlags.Concurrency
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}

	return app.New(cfg), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.APIToken, "api-token", "",
		"analytics API token (overrides env CHALLAN_API_TOKEN and config.json)")
	pf.StringVar(&globalFlags.BaseURL, "base-url", "",
		"analytics API base URL (overrides env CHALLAN_BASE_URL and config.json)")
	pf.StringVar(&globalFlags.DBPath, "db-path", "",
		"local database path (default: ~/.challan/challan.db)")
	pf.StringVar(&globalFlags.Dashboard, "dashboard", "",
		"dashboard layout YAML naming chart scopes and their ranges")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.BoolVar(&globalFlags.Refresh, "refresh", false,
		"force re-fetch even when the range is already stored")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.IntVar(&globalFlags.Concurrency, "concurrency", 0,
		"max parallel fetches across scopes (default: 4)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max API requests per second (default: 5.0)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"info logging and timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"debug logging, including HTTP requests (token redacted)")
}

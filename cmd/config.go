package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/config"
	"github.com/derickschaefer/challan/internal/render"
	"github.com/derickschaefer/challan/internal/timerange"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage challan configuration",
	Long: `Read and write challan configuration stored in config.json.

Environment variables (CHALLAN_*, optionally from a .env file) override
config.json; flags override both.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created %s\n", path)
		fmt.Fprintln(out, "  Edit it and set base_url (and api_token if the report API needs one).")
		return nil
	},
}

var configGetShowSecrets bool

// configOut is the --format json shape of 'config get'.
type configOut struct {
	APIToken     string   `json:"api_token"`
	BaseURL      string   `json:"base_url"`
	Format       string   `json:"default_format"`
	Timeout      string   `json:"timeout"`
	Concurrency  int      `json:"concurrency"`
	Rate         float64  `json:"rate"`
	DBPath       string   `json:"db_path"`
	RedisAddr    string   `json:"redis_addr"`
	ListenAddr   string   `json:"listen_addr"`
	CORSOrigins  []string `json:"cors_origins"`
	Dashboard    string   `json:"dashboard"`
	DefaultRange string   `json:"default_range"`
	ConfigFile   string   `json:"config_file"`
	EnvFile      string   `json:"env_file"`
}

var configGetCmd = &cobra.Command{
	Use:     "get",
	Aliases: []string{"show"},
	Short:   "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.APIToken)
		if err != nil {
			return err
		}

		token := cfg.RedactedAPIToken()
		if configGetShowSecrets {
			token = cfg.APIToken
		}
		out := configOut{
			APIToken:     orUnset(token),
			BaseURL:      orUnset(cfg.BaseURL),
			Format:       cfg.Format,
			Timeout:      cfg.Timeout.String(),
			Concurrency:  cfg.Concurrency,
			Rate:         cfg.Rate,
			DBPath:       cfg.DBPath,
			RedisAddr:    orUnset(cfg.RedisAddr),
			ListenAddr:   cfg.ListenAddr,
			CORSOrigins:  cfg.CORSOrigins,
			Dashboard:    orUnset(cfg.DashboardPath),
			DefaultRange: cfg.DefaultRange,
			ConfigFile:   orNotFound(cfg.ConfigPath),
			EnvFile:      orNotFound(cfg.EnvPath),
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		origins := "*"
		if len(out.CORSOrigins) > 0 {
			origins = strings.Join(out.CORSOrigins, ",")
		}
		printKVTable(cmd.OutOrStdout(), [][]string{
			{"api_token", out.APIToken},
			{"base_url", out.BaseURL},
			{"default_format", out.Format},
			{"timeout", out.Timeout},
			{"concurrency", strconv.Itoa(out.Concurrency)},
			{"rate", fmt.Sprintf("%.1f req/s", out.Rate)},
			{"db_path", out.DBPath},
			{"redis_addr", out.RedisAddr},
			{"listen_addr", out.ListenAddr},
			{"cors_origins", origins},
			{"dashboard", out.Dashboard},
			{"default_range", out.DefaultRange},
			{"config_file", out.ConfigFile},
			{"env_file", out.EnvFile},
		})
		return nil
	},
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func orNotFound(s string) string {
	if s == "" {
		return "(not found)"
	}
	return s
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])

		f, path, err := loadConfigFile()
		if err != nil {
			path = config.DefaultConfigFile
			f = config.Template()
		}
		if err := setConfigKey(&f, key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

var configKeys = []string{
	"api_token", "base_url", "default_format", "timeout", "concurrency", "rate",
	"db_path", "redis_addr", "listen_addr", "cors_origins", "dashboard", "default_range",
}

// setConfigKey validates val and stores it under key in f.
func setConfigKey(f *config.File, key, val string) error {
	switch key {
	case "api_token":
		f.APIToken = val
	case "base_url":
		f.BaseURL = val
	case "default_format", "format":
		if !contains(render.Formats, val) {
			return fmt.Errorf("unknown format %q (use %s)", val, strings.Join(render.Formats, ", "))
		}
		f.DefaultFormat = val
	case "timeout":
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		f.Timeout = val
	case "concurrency":
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return fmt.Errorf("concurrency must be a positive integer")
		}
		f.Concurrency = n
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil || r <= 0 {
			return fmt.Errorf("rate must be a positive number")
		}
		f.Rate = r
	case "db_path":
		f.DBPath = val
	case "redis_addr":
		f.RedisAddr = val
	case "listen_addr":
		f.ListenAddr = val
	case "cors_origins":
		f.CORSOrigins = nil
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				f.CORSOrigins = append(f.CORSOrigins, o)
			}
		}
	case "dashboard":
		f.Dashboard = val
	case "default_range":
		if !timerange.IsKnownToken(val) {
			return fmt.Errorf("unknown range token %q (use %s)", val, strings.Join(timerange.Tokens, ", "))
		}
		f.DefaultRange = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// loadConfigFile reads config.json from the working directory.
func loadConfigFile() (config.File, string, error) {
	path := config.DefaultConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		return config.File{}, "", err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return config.File{}, "", err
	}
	return f, path, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configGetCmd.Flags().BoolVar(&configGetShowSecrets, "show-secrets", false, "show the API token in plain text")
}

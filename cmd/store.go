package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/store"
	"github.com/derickschaefer/challan/internal/timerange"
	"github.com/derickschaefer/challan/internal/util"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and manage fetched batches",
	Long: `Commands for inspecting what 'challan fetch' has stored in the local bbolt
database. Each batch holds the raw records (or geo stats) of one scope for
one effective range. Data persists until you explicitly clear it.`,
}

// ─── store list ───────────────────────────────────────────────────────────────

var storeListCmd = &cobra.Command{
	Use:   "list [SCOPE]",
	Short: "List stored batches",
	Example: `  challan store list
  challan store list weekly-reports --format csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		scope := ""
		if len(args) == 1 {
			scope = args[0]
		}
		start := time.Now()
		batches, err := deps.Store.ListBatches(scope)
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(batches) == 0 && resolveFormat(deps.Config.Format) == "table" {
			fmt.Fprintln(cmd.OutOrStdout(), "No batches in local database.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Use: challan fetch --dashboard <layout.yaml>")
			return nil
		}

		result := newResult(model.KindTable, strings.TrimSpace("store list "+scope), batchTable(batches), len(batches), start)
		return emit(cmd, deps, result)
	},
}

func batchTable(batches []store.Batch) model.Table {
	t := model.Table{Headers: []string{"ID", "SCOPE", "KIND", "KEY", "START", "END", "ITEMS", "FETCHED AT"}}
	for _, b := range batches {
		fetchedAt := ""
		if !b.FetchedAt.IsZero() {
			fetchedAt = b.FetchedAt.Local().Format("2006-01-02 15:04")
		}
		t.Rows = append(t.Rows, []string{
			b.ID, b.Scope, b.Kind, b.Key,
			util.FormatDate(b.Window.Start), util.FormatDate(b.Window.End),
			fmt.Sprintf("%d", b.Size()), fetchedAt,
		})
	}
	return t
}

// ─── store show ───────────────────────────────────────────────────────────────

var (
	storeShowKind        string
	storeShowGranularity string
)

var storeShowCmd = &cobra.Command{
	Use:   "show <SCOPE>",
	Short: "Aggregate the latest stored batch of a scope",
	Long: `Reads the most recently fetched batch of SCOPE and aggregates it:
buckets batches are bucketed (records outside the batch window dropped),
geo batches are normalized into points and hotspots.

The granularity defaults to the one the batch was fetched with.`,
	Example: `  challan store show weekly-reports
  challan store show weekly-reports --granularity month --format csv
  challan store show hotspots --kind geo --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		scope := args[0]
		start := time.Now()
		b, ok, err := deps.Store.Latest(storeShowKind, scope)
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if !ok {
			return fmt.Errorf("no stored %s batch for scope %s\n\n  Use: challan fetch %s", storeShowKind, scope, scope)
		}

		if b.Kind == model.KindGeo {
			set := geo.Normalize(b.GeoStats)
			result := newResult(model.KindGeo, "store show "+scope, set, len(set.Points)+len(set.Hotspots), start)
			result.Warnings = geoWarnings(set)
			result.Stats.CacheHit = true
			return emit(cmd, deps, result)
		}

		rows, skipped, g, err := bucketBatch(b, storeShowGranularity, deps.Clock.Now())
		if err != nil {
			return err
		}
		result := newResult(model.KindBuckets, fmt.Sprintf("store show %s --granularity %s", scope, g), rows, len(rows), start)
		if skipped > 0 {
			result.Warnings = []string{fmt.Sprintf("%d records skipped: unparseable date", skipped)}
		}
		result.Stats.CacheHit = true
		return emit(cmd, deps, result)
	},
}

// bucketBatch buckets a stored report batch, limited to the batch window.
// An empty granularity uses the batch's own.
func bucketBatch(b store.Batch, granularity string, now time.Time) ([]model.BucketRow, int, bucket.Granularity, error) {
	if granularity == "" {
		granularity = b.Granularity
	}
	g, err := bucket.ParseGranularity(granularity)
	if err != nil {
		return nil, 0, "", err
	}
	recs := bucket.Decode(b.Records, nil)
	if !b.Window.Start.IsZero() {
		recs, _ = timerange.Filter(recs, b.Window)
	}
	rows, skipped := bucket.BucketBy(recs, g, now)
	return rows, skipped, g, nil
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  challan store stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", deps.Store.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
		})
		return nil
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var (
	storeClearAll    bool
	storeClearBucket string
)

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete batches from the local store",
	Long: `Delete batches from one or all buckets.

bbolt does not shrink the database file after clearing; freed pages are
reused by later writes.`,
	Example: `  challan store clear --all
  challan store clear --bucket geo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !storeClearAll && storeClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <name>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}
		if storeClearBucket != "" && !contains(store.AllBuckets, storeClearBucket) {
			return fmt.Errorf("unknown bucket %q (use %s)", storeClearBucket, strings.Join(store.AllBuckets, " or "))
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if storeClearAll {
			if err := deps.Store.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all buckets")
			return nil
		}
		if err := deps.Store.ClearBucket(storeClearBucket); err != nil {
			return fmt.Errorf("clearing bucket %q: %w", storeClearBucket, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared bucket %q\n", storeClearBucket)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeShowCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeClearCmd)

	storeShowCmd.Flags().StringVar(&storeShowKind, "kind", model.KindBuckets, "batch kind: buckets|geo")
	storeShowCmd.Flags().StringVar(&storeShowGranularity, "granularity", "", "day|week|month (default: the batch's)")

	storeClearCmd.Flags().BoolVar(&storeClearAll, "all", false, "clear all buckets")
	storeClearCmd.Flags().StringVar(&storeClearBucket, "bucket", "", "clear one bucket: "+strings.Join(store.AllBuckets, "|"))
}

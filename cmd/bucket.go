package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/timerange"
)

var (
	bucketGranularity string
	bucketFile        string
	bucketRange       rangeFlags
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Aggregate report records into day, week or month buckets (reads JSONL)",
	Long: `Reads raw report records as JSONL from stdin (or --file) and sums their
report, approved, rejected and pending counts per period.

The date is taken from date, period, week or month, first match wins.
Weeks start on Monday. Records without a parseable date are skipped and
counted in a warning.

With --range/--start/--end the records are first limited to that window;
records without a date pass that filter and are then skipped by bucketing.

--format jsonl emits one row per line in the shape 'chart buckets' reads.`,
	Example: `  cat reports.jsonl | challan bucket
  challan bucket --file reports.jsonl --granularity month --format csv
  challan bucket --file reports.jsonl --range 90d --format jsonl | challan chart buckets --ascii`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		g, err := bucket.ParseGranularity(bucketGranularity)
		if err != nil {
			return err
		}
		raws, err := readRecords(bucketFile)
		if err != nil {
			return err
		}

		start := time.Now()
		now := deps.Clock.Now()
		recs := bucket.Decode(raws, nil)

		var warnings []string
		if bucketRange.isSet() {
			st, err := bucketRange.rangeSpec().State()
			if err != nil {
				return fmt.Errorf("range: %w", err)
			}
			w, ok := timerange.WindowOf(st, now)
			if !ok {
				return fmt.Errorf("range: absolute range needs both --start and --end, with start not after end")
			}
			recs, _ = timerange.Filter(recs, w)
		}

		rows, skipped := bucket.BucketBy(recs, g, now)
		if skipped > 0 {
			warnings = append(warnings, fmt.Sprintf("%d records skipped: unparseable date", skipped))
		}

		result := newResult(model.KindBuckets, fmt.Sprintf("bucket --granularity %s", g), rows, len(rows), start)
		result.Warnings = warnings
		return emit(cmd, deps, result)
	},
}

func init() {
	rootCmd.AddCommand(bucketCmd)

	bucketCmd.Flags().StringVar(&bucketGranularity, "granularity", string(bucket.Week), "day|week|month")
	bucketCmd.Flags().StringVar(&bucketFile, "file", "", "read records from this JSONL file instead of stdin")
	bucketRange.register(bucketCmd, "", "limit records to this")
}

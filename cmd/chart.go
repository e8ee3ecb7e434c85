package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/app"
	"github.com/derickschaefer/challan/internal/chart"
	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/heat"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/pipeline"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render bucket rows or heatmaps as charts",
	Long: `Chart commands render to the terminal (--ascii) or to a standalone HTML
page written to --out (default stdout).

Input is JSONL from stdin, a --file, or the latest stored batch of --scope.

Pipeline examples:
  challan bucket --file reports.jsonl --format jsonl | challan chart buckets --ascii
  challan chart buckets --scope weekly-reports --out weekly.html
  challan chart heat --file geo.jsonl --zoom 13 --out map.html`,
}

var (
	chartFile    string
	chartScope   string
	chartTitle   string
	chartASCII   bool
	chartWidth   int
	chartMaxBars int
	chartZoom    float64
)

// ─── chart buckets ────────────────────────────────────────────────────────────

var chartBucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Stacked bar chart of approved, rejected and pending counts per period",
	Long: `Reads bucket rows as emitted by 'challan bucket --format jsonl', or buckets
the latest stored batch of --scope with the granularity it was fetched with.

--ascii draws one stacked bar per period in the terminal; otherwise an
interactive HTML chart is written.`,
	Example: `  challan bucket --file reports.jsonl --format jsonl | challan chart buckets --ascii
  challan chart buckets --scope weekly-reports --ascii --max-bars 8
  challan chart buckets --scope weekly-reports --out weekly.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		rows, title, err := chartRows(deps)
		if err != nil {
			return err
		}
		if chartTitle != "" {
			title = chartTitle
		}
		if chartASCII {
			return chart.Bar(cmd.OutOrStdout(), title, rows, chart.BarOptions{
				Width:   chartWidth,
				MaxBars: chartMaxBars,
			})
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := chart.Buckets(w, title, rows); err != nil {
			_ = closeFn()
			return err
		}
		return closeFn()
	},
}

func chartRows(deps *app.Deps) ([]model.BucketRow, string, error) {
	if chartScope == "" {
		in, err := openInput(chartFile)
		if err != nil {
			return nil, "", err
		}
		defer in.Close()
		rows, err := pipeline.ReadRows(in)
		return rows, "Reports", err
	}

	if err := deps.RequireStore(); err != nil {
		return nil, "", err
	}
	b, ok, err := deps.Store.Latest(model.KindBuckets, chartScope)
	if err != nil {
		return nil, "", fmt.Errorf("reading store: %w", err)
	}
	if !ok {
		return nil, "", fmt.Errorf("no stored buckets batch for scope %s", chartScope)
	}
	rows, _, _, err := bucketBatch(b, "", deps.Clock.Now())
	return rows, chartScope, err
}

// ─── chart heat ───────────────────────────────────────────────────────────────

var chartHeatCmd = &cobra.Command{
	Use:   "heat",
	Short: "Geo heatmap of violation points and hotspots",
	Long: `Normalizes geo stats from --file/stdin, or the latest stored geo batch of
--scope, and writes an HTML heatmap whose color scale is capped at the
zoom-dependent intensity ceiling (see 'challan heat scale').

With --scope and no --zoom, the scope's zoom from the dashboard layout is
used when it sets one.`,
	Example: `  challan chart heat --file geo.jsonl --zoom 13 --out map.html
  challan chart heat --scope hotspots --dashboard dashboard.yaml > map.html
  challan chart heat --scope hotspots --zoom 9 > map.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		set, title, err := chartGeoSet(deps)
		if err != nil {
			return err
		}
		if chartTitle != "" {
			title = chartTitle
		}
		if !deps.Config.Quiet {
			for _, warn := range geoWarnings(set) {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %s\n", warn)
			}
		}

		zoom, err := heatZoom(deps, cmd.Flags().Changed("zoom"))
		if err != nil {
			return err
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := chart.Heat(w, title, set, zoom); err != nil {
			_ = closeFn()
			return err
		}
		return closeFn()
	},
}

func chartGeoSet(deps *app.Deps) (model.GeoSet, string, error) {
	if chartScope == "" {
		set, err := readGeoSet(chartFile)
		return set, "Violation heatmap", err
	}

	if err := deps.RequireStore(); err != nil {
		return model.GeoSet{}, "", err
	}
	b, ok, err := deps.Store.Latest(model.KindGeo, chartScope)
	if err != nil {
		return model.GeoSet{}, "", fmt.Errorf("reading store: %w", err)
	}
	if !ok {
		return model.GeoSet{}, "", fmt.Errorf("no stored geo batch for scope %s", chartScope)
	}
	return geo.Normalize(b.GeoStats), chartScope, nil
}

// heatZoom is --zoom when given. Otherwise a --scope found in the dashboard
// layout contributes its zoom, falling back to the --zoom default.
func heatZoom(deps *app.Deps, zoomSet bool) (float64, error) {
	if zoomSet || chartScope == "" {
		return chartZoom, nil
	}
	layout, ok, err := deps.Dashboard()
	if err != nil || !ok {
		return chartZoom, err
	}
	if s, found := layout.Scope(chartScope); found && s.Zoom > 0 {
		return s.Zoom, nil
	}
	return chartZoom, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(chartCmd)
	chartCmd.AddCommand(chartBucketsCmd)
	chartCmd.AddCommand(chartHeatCmd)

	for _, c := range []*cobra.Command{chartBucketsCmd, chartHeatCmd} {
		c.Flags().StringVar(&chartFile, "file", "", "read input from this JSONL file instead of stdin")
		c.Flags().StringVar(&chartScope, "scope", "", "chart the latest stored batch of this scope")
		c.Flags().StringVar(&chartTitle, "title", "", "chart title")
		c.SilenceUsage = true
	}

	chartBucketsCmd.Flags().BoolVar(&chartASCII, "ascii", false, "draw in the terminal instead of writing HTML")
	chartBucketsCmd.Flags().IntVar(&chartWidth, "width", 0,
		"terminal chart width in characters (default: auto-detect from $COLUMNS, fallback 80)")
	chartBucketsCmd.Flags().IntVar(&chartMaxBars, "max-bars", 0,
		"maximum bars to render, keeping the most recent (0 = no limit)")

	chartHeatCmd.Flags().Float64Var(&chartZoom, "zoom", float64(heat.CityZoom), "map zoom level for the intensity ceiling")
}

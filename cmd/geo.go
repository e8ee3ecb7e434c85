package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/app"
	"github.com/derickschaefer/challan/internal/config"
	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/geoindex"
	"github.com/derickschaefer/challan/internal/model"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Normalize violation coordinates and query hotspots",
	Long: `Geo commands read per-district geo stats as JSONL (one object per district
with hotspots and individualViolations arrays) from stdin or --file.

Coordinates may be numbers or numeric strings under latitude/lat and
longitude/lng/lon. Points at (0,0) or outside [-90,90]x[-180,180] are dropped.`,
}

// ─── geo normalize ────────────────────────────────────────────────────────────

var (
	geoFile string
	geoHeat bool
)

var geoNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Validate, flatten and deduplicate points and hotspots",
	Example: `  cat geo.jsonl | challan geo normalize
  challan geo normalize --file geo.jsonl --format jsonl
  challan geo normalize --file geo.jsonl --heat --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		set, err := readGeoSet(geoFile)
		if err != nil {
			return err
		}
		start := time.Now()

		var result *model.Result
		if geoHeat {
			points, _, _ := geo.HeatPoints(set)
			result = newResult(model.KindHeat, "geo normalize --heat", points, len(points), start)
		} else {
			result = newResult(model.KindGeo, "geo normalize", set, len(set.Points)+len(set.Hotspots), start)
		}
		result.Warnings = geoWarnings(set)
		return emit(cmd, deps, result)
	},
}

// ─── geo index ────────────────────────────────────────────────────────────────

var (
	geoScope   string
	geoReplace bool
)

var geoIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Store normalized hotspots in the Redis GEO index",
	Long: `Normalizes the input and stores its hotspots under --scope in the Redis
GEO index at CHALLAN_REDIS_ADDR (or redis_addr in config.json). Hotspots
already indexed under the scope are dropped first; with --replace=false they
are kept and only those at the same coordinates are overwritten.`,
	Example: `  challan geo index --scope hotspots --file geo.jsonl
  challan geo index --scope hotspots --file more.jsonl --replace=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := requireRedis(deps); err != nil {
			return err
		}
		set, err := readGeoSet(geoFile)
		if err != nil {
			return err
		}
		if err := deps.RequireIndex(cmd.Context()); err != nil {
			return err
		}
		n, err := indexHotspots(cmd.Context(), deps.Index, geoScope, set.Hotspots, geoReplace)
		if err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Indexed %d hotspots under scope %q\n", n, geoScope)
		}
		return nil
	},
}

// ─── geo nearby ───────────────────────────────────────────────────────────────

var (
	geoLat    float64
	geoLng    float64
	geoRadius float64
)

var geoNearbyCmd = &cobra.Command{
	Use:     "nearby",
	Short:   "List indexed hotspots within a radius",
	Example: `  challan geo nearby --scope hotspots --lat 12.9716 --lng 77.5946 --radius 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := requireRedis(deps); err != nil {
			return err
		}
		if err := deps.RequireIndex(cmd.Context()); err != nil {
			return err
		}
		start := time.Now()
		spots, err := deps.Index.Nearby(cmd.Context(), geoScope, geoLat, geoLng, geoRadius)
		if err != nil {
			return err
		}
		set := model.GeoSet{Points: []model.NormalizedPoint{}, Hotspots: spots}
		result := newResult(model.KindGeo,
			fmt.Sprintf("geo nearby %g,%g r=%gkm", geoLat, geoLng, geoRadius), set, len(spots), start)
		return emit(cmd, deps, result)
	},
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// readGeoSet reads raw geo stats from path or stdin and normalizes them.
func readGeoSet(path string) (model.GeoSet, error) {
	raws, err := readRecords(path)
	if err != nil {
		return model.GeoSet{}, err
	}
	return geo.Normalize(geo.DecodeStats(raws)), nil
}

// indexHotspots stores hotspots under scope, dropping what the scope held
// first when replace is set.
func indexHotspots(ctx context.Context, ix *geoindex.Index, scope string, hotspots []model.NormalizedHotspot, replace bool) (int, error) {
	if replace {
		return ix.Replace(ctx, scope, hotspots)
	}
	return ix.Put(ctx, scope, hotspots)
}

// requireRedis refuses to run index commands against the in-memory index,
// which would not outlive the process.
func requireRedis(deps *app.Deps) error {
	if deps.Config.RedisAddr == "" {
		return fmt.Errorf("the hotspot index needs a redis address (set %s or redis_addr in config.json)", config.EnvRedisAddr)
	}
	return nil
}

func geoWarnings(set model.GeoSet) []string {
	var w []string
	if set.Rejected > 0 {
		w = append(w, fmt.Sprintf("%d entries dropped: invalid coordinates", set.Rejected))
	}
	if set.Duplicates > 0 {
		w = append(w, fmt.Sprintf("%d duplicates merged", set.Duplicates))
	}
	return w
}

func init() {
	rootCmd.AddCommand(geoCmd)
	geoCmd.AddCommand(geoNormalizeCmd)
	geoCmd.AddCommand(geoIndexCmd)
	geoCmd.AddCommand(geoNearbyCmd)

	for _, c := range []*cobra.Command{geoNormalizeCmd, geoIndexCmd} {
		c.Flags().StringVar(&geoFile, "file", "", "read geo stats from this JSONL file instead of stdin")
	}
	geoIndexCmd.Flags().BoolVar(&geoReplace, "replace", true, "drop hotspots already indexed under --scope first")
	geoNormalizeCmd.Flags().BoolVar(&geoHeat, "heat", false, "emit weighted heat points instead of the normalized set")

	for _, c := range []*cobra.Command{geoIndexCmd, geoNearbyCmd} {
		c.Flags().StringVar(&geoScope, "scope", "hotspots", "index scope (one GEO set per scope)")
	}
	geoNearbyCmd.Flags().Float64Var(&geoLat, "lat", 0, "centre latitude")
	geoNearbyCmd.Flags().Float64Var(&geoLng, "lng", 0, "centre longitude")
	geoNearbyCmd.Flags().Float64Var(&geoRadius, "radius", 1, "radius in km")
	_ = geoNearbyCmd.MarkFlagRequired("lat")
	_ = geoNearbyCmd.MarkFlagRequired("lng")
}

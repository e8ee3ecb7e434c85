package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/heat"
	"github.com/derickschaefer/challan/internal/model"
)

var heatCmd = &cobra.Command{
	Use:   "heat",
	Short: "Heatmap intensity scaling",
}

var (
	heatMax       float64
	heatScaleZoom float64
	heatFile      string
)

var heatScaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Compute the heatmap color-scale ceiling for a zoom level",
	Long: `The ceiling is the largest observed weight, raised to a zoom-dependent
floor so sparse data is not rendered at full saturation:

  zoom >= 12   floor 10
  zoom >= 8    floor 5
  otherwise    floor 1

Without --max (and without --file) the dataset is treated as empty and the
ceiling is 1. With --file the observed maximum is taken from the heat
points of the normalized geo stats.`,
	Example: `  challan heat scale --max 3 --zoom 14
  challan heat scale --zoom 10
  challan heat scale --file geo.jsonl --zoom 13 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()

		maxObserved, hasData := heatMax, cmd.Flags().Changed("max")
		if heatFile != "" {
			set, err := readGeoSet(heatFile)
			if err != nil {
				return err
			}
			_, maxObserved, hasData = geo.HeatPoints(set)
		}

		in := heat.Compute(maxObserved, heatScaleZoom, hasData)
		result := newResult(model.KindIntensity,
			fmt.Sprintf("heat scale --zoom %g", heatScaleZoom), in, 1, start)
		if !hasData {
			result.Warnings = []string{"no data: ceiling defaults to 1"}
		}
		return emit(cmd, deps, result)
	},
}

func init() {
	rootCmd.AddCommand(heatCmd)
	heatCmd.AddCommand(heatScaleCmd)

	heatScaleCmd.Flags().Float64Var(&heatMax, "max", 0, "largest observed weight (omit for an empty dataset)")
	heatScaleCmd.Flags().Float64Var(&heatScaleZoom, "zoom", float64(heat.CityZoom), "map zoom level")
	heatScaleCmd.Flags().StringVar(&heatFile, "file", "", "derive --max from this geo stats JSONL file")
}

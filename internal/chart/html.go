package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/heat"
	"github.com/derickschaefer/challan/internal/model"
)

// GeoMap is the registered echarts map the heat layer is drawn over.
var GeoMap = "world"

const stackStatus = "status"

// Buckets writes an HTML page with one stacked bar per period, split into
// approved, rejected and to-be-reviewed reports.
func Buckets(w io.Writer, title string, rows []model.BucketRow) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1000px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, len(rows))
	approved := make([]opts.BarData, len(rows))
	rejected := make([]opts.BarData, len(rows))
	review := make([]opts.BarData, len(rows))
	for i, r := range rows {
		labels[i] = r.Label
		approved[i] = opts.BarData{Value: r.Approved}
		rejected[i] = opts.BarData{Value: r.Rejected}
		review[i] = opts.BarData{Value: r.ToBeReviewed}
	}

	stack := charts.WithBarChartOpts(opts.BarChart{Stack: stackStatus})
	bar.SetXAxis(labels).
		AddSeries("Approved", approved, stack).
		AddSeries("Rejected", rejected, stack).
		AddSeries("To review", review, stack)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("rendering bucket chart: %w", err)
	}
	return nil
}

// Heat writes an HTML page with the set's heat points over GeoMap. The
// visual-map ceiling comes from heat.Scale for zoom; hotspots are also
// drawn as labelled scatter points.
func Heat(w io.Writer, title string, set model.GeoSet, zoom float64) error {
	points, _, _ := geo.HeatPoints(set)
	ceiling := heat.ForPoints(points, zoom)

	g := charts.NewGeo()
	g.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1000px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d points, %d hotspots, max intensity %g", len(set.Points), len(set.Hotspots), ceiling),
		}),
		charts.WithGeoComponentOpts(opts.GeoComponent{
			Map:    GeoMap,
			Silent: opts.Bool(true),
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Type: "continuous",
			Min:  0,
			Max:  float32(ceiling),
		}),
	)

	data := make([]opts.GeoData, 0, len(points))
	for _, p := range points {
		data = append(data, opts.GeoData{Value: []float64{p.Lng, p.Lat, p.Weight}})
	}
	g.AddSeries("Intensity", types.ChartHeatMap, data)

	if len(set.Hotspots) > 0 {
		spots := make([]opts.GeoData, 0, len(set.Hotspots))
		for _, h := range set.Hotspots {
			spots = append(spots, opts.GeoData{
				Name:  h.Address,
				Value: []float64{h.Longitude, h.Latitude, float64(h.ViolationCount)},
			})
		}
		g.AddSeries("Hotspots", types.ChartScatter, spots,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false), Formatter: "{b}"}),
		)
	}

	if err := g.Render(w); err != nil {
		return fmt.Errorf("rendering heat chart: %w", err)
	}
	return nil
}

// Package heat computes the heatmap color-scale ceiling for a map zoom level.
package heat

import (
	"math"

	"github.com/derickschaefer/challan/internal/model"
)

// Zoom thresholds and the minimum ceiling used at or above each.
const (
	StreetZoom = 12
	CityZoom   = 8

	streetFloor = 10
	cityFloor   = 5
	regionFloor = 1
)

// NoData is the ceiling returned when there is nothing to plot.
const NoData = 1.0

// Scale returns the max intensity for maxObserved at zoom. Pass math.NaN()
// for maxObserved when the source has no data at all.
func Scale(maxObserved, zoom float64) float64 {
	if math.IsNaN(maxObserved) || math.IsInf(maxObserved, 0) {
		return NoData
	}
	return math.Max(maxObserved, Floor(zoom))
}

// Floor is the lowest ceiling allowed at zoom.
func Floor(zoom float64) float64 {
	switch {
	case zoom >= StreetZoom:
		return streetFloor
	case zoom >= CityZoom:
		return cityFloor
	default:
		return regionFloor
	}
}

// ForPoints scales against the heaviest point; an empty slice yields NoData.
func ForPoints(points []model.HeatPoint, zoom float64) float64 {
	if len(points) == 0 {
		return NoData
	}
	max := 0.0
	for _, p := range points {
		if p.Weight > max {
			max = p.Weight
		}
	}
	return Scale(max, zoom)
}

// Compute packages Scale's inputs and output for rendering.
func Compute(maxObserved, zoom float64, hasData bool) model.Intensity {
	in := model.Intensity{MaxObserved: maxObserved, Zoom: zoom, HasData: hasData}
	if hasData {
		in.Max = Scale(maxObserved, zoom)
	} else {
		in.MaxObserved = 0
		in.Max = NoData
	}
	return in
}

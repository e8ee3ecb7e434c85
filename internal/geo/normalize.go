// Package geo turns backend geo statistics into validated map points and
// hotspot clusters. Invalid coordinates are dropped silently: upstream data
// encodes placeholder locations as 0,0.
package geo

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/probe"
)

// Field aliases, probed in order.
var (
	latKeys       = []string{"latitude", "lat"}
	lngKeys       = []string{"longitude", "lng"}
	idKeys        = []string{"id", "_id", "challanId", "reportId"}
	addressKeys   = []string{"address", "location", "formattedAddress"}
	statusKeys    = []string{"status"}
	typeKeys      = []string{"violationType", "type", "category"}
	timeKeys      = []string{"timestamp", "createdAt", "date"}
	countKeys     = []string{"violationCount", "count"}
	districtKeys  = []string{"district", "districtName", "_id"}
	cityKeys      = []string{"city", "cityName"}
	hotspotKeys   = []string{"hotspots"}
	violationKeys = []string{"individualViolations", "violations"}
)

// unknownDistrict names stats that carry neither district nor city.
const unknownDistrict = "Unknown district"

// coordPrecision is the rounding used to detect duplicate hotspots (~1 m).
const coordPrecision = 5

// Valid reports whether a coordinate pair can be plotted: both finite, not
// both zero, and within lat∈[-90,90], lng∈[-180,180].
func Valid(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	if lat == 0 && lng == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Coordinates resolves a record's lat/lng via the alias order
// latitude-number, latitude-string, lat-number, lat-string (same for
// longitude/lng) and applies Valid.
func Coordinates(rec model.RawRecord) (lat, lng float64, ok bool) {
	lat, okLat := probe.Float(rec, latKeys...)
	lng, okLng := probe.Float(rec, lngKeys...)
	if !okLat || !okLng || !Valid(lat, lng) {
		return 0, 0, false
	}
	return lat, lng, true
}

// DecodeStats converts loosely-shaped API objects into RawGeoStats.
func DecodeStats(raws []model.RawRecord) []model.RawGeoStat {
	out := make([]model.RawGeoStat, 0, len(raws))
	for _, raw := range raws {
		st := model.RawGeoStat{}
		st.District, _ = probe.String(raw, districtKeys...)
		st.City, _ = probe.String(raw, cityKeys...)
		for _, r := range probe.Records(raw, hotspotKeys...) {
			st.Hotspots = append(st.Hotspots, r)
		}
		for _, r := range probe.Records(raw, violationKeys...) {
			st.IndividualViolations = append(st.IndividualViolations, r)
		}
		out = append(out, st)
	}
	return out
}

// ─── Normalize ────────────────────────────────────────────────────────────────

// Normalize validates and flattens stats into points and hotspots, keeping
// input order. Individual violations count 1 each and are deduplicated by id
// (first wins). Hotspots sharing rounded coordinates are merged into the
// first occurrence. The result slices are never nil.
func Normalize(stats []model.RawGeoStat) model.GeoSet {
	set := model.GeoSet{
		Points:   make([]model.NormalizedPoint, 0),
		Hotspots: make([]model.NormalizedHotspot, 0),
	}
	seenIDs := make(map[string]bool)
	hotspotAt := make(map[string]int)

	for _, st := range stats {
		district := districtName(st)

		for _, raw := range st.IndividualViolations {
			lat, lng, ok := Coordinates(raw)
			if !ok {
				set.Rejected++
				slog.Debug("geo: dropping violation with invalid coordinates", "district", district, "raw", raw)
				continue
			}
			id, _ := probe.String(raw, idKeys...)
			if id != "" {
				if seenIDs[id] {
					set.Duplicates++
					continue
				}
				seenIDs[id] = true
			}
			p := model.NormalizedPoint{
				ID:        id,
				Latitude:  lat,
				Longitude: lng,
				Count:     1,
				Address:   address(raw, district),
				District:  district,
			}
			p.Status, _ = probe.String(raw, statusKeys...)
			p.ViolationType, _ = probe.String(raw, typeKeys...)
			if ts, _, ok := probe.Time(raw, time.Local, timeKeys...); ok {
				p.Timestamp = ts
			}
			set.Points = append(set.Points, p)
		}

		for _, raw := range st.Hotspots {
			lat, lng, ok := Coordinates(raw)
			if !ok {
				set.Rejected++
				slog.Debug("geo: dropping hotspot with invalid coordinates", "district", district, "raw", raw)
				continue
			}
			h := model.NormalizedHotspot{
				Latitude:       lat,
				Longitude:      lng,
				ViolationCount: nonNegative(probe.IntOr(raw, 0, countKeys...)),
				Address:        address(raw, district),
				District:       district,
				StatusCounts:   statusCounts(raw),
				ViolationTypes: stringList(raw, "violationTypes"),
			}
			key := coordKey(lat, lng)
			if i, dup := hotspotAt[key]; dup {
				set.Duplicates++
				mergeHotspot(&set.Hotspots[i], h)
				continue
			}
			hotspotAt[key] = len(set.Hotspots)
			set.Hotspots = append(set.Hotspots, h)
		}
	}
	return set
}

// ─── Heat projection ──────────────────────────────────────────────────────────

// HeatPoints projects a GeoSet into weighted heat points. Individual points
// are used when present; otherwise hotspots weighted by violation count.
// maxWeight is the largest weight seen; ok is false when there is no data.
func HeatPoints(set model.GeoSet) (points []model.HeatPoint, maxWeight float64, ok bool) {
	points = make([]model.HeatPoint, 0, len(set.Points)+len(set.Hotspots))
	if len(set.Points) > 0 {
		for _, p := range set.Points {
			points = append(points, model.HeatPoint{Lat: p.Latitude, Lng: p.Longitude, Weight: float64(p.Count)})
		}
	} else {
		for _, h := range set.Hotspots {
			points = append(points, model.HeatPoint{Lat: h.Latitude, Lng: h.Longitude, Weight: float64(h.ViolationCount)})
		}
	}
	if len(points) == 0 {
		return points, 0, false
	}
	for _, p := range points {
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
	}
	return points, maxWeight, true
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func districtName(st model.RawGeoStat) string {
	switch {
	case st.District != "":
		return st.District
	case st.City != "":
		return st.City
	}
	return unknownDistrict
}

func address(raw model.RawRecord, district string) string {
	if a, ok := probe.String(raw, addressKeys...); ok {
		return a
	}
	return fmt.Sprintf("Unknown location, %s", district)
}

func statusCounts(raw model.RawRecord) model.StatusCounts {
	sc, ok := raw["statusCounts"].(map[string]interface{})
	if !ok {
		return model.StatusCounts{}
	}
	return model.StatusCounts{
		Rejected: nonNegative(probe.IntOr(sc, 0, "REJECTED", "rejected")),
		Approved: nonNegative(probe.IntOr(sc, 0, "APPROVED", "approved")),
		Pending:  nonNegative(probe.IntOr(sc, 0, "PENDING", "pending")),
	}
}

func stringList(raw model.RawRecord, key string) []string {
	items, ok := raw[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeHotspot(dst *model.NormalizedHotspot, src model.NormalizedHotspot) {
	dst.ViolationCount += src.ViolationCount
	dst.StatusCounts.Rejected += src.StatusCounts.Rejected
	dst.StatusCounts.Approved += src.StatusCounts.Approved
	dst.StatusCounts.Pending += src.StatusCounts.Pending
	seen := make(map[string]bool, len(dst.ViolationTypes))
	for _, t := range dst.ViolationTypes {
		seen[t] = true
	}
	for _, t := range src.ViolationTypes {
		if !seen[t] {
			dst.ViolationTypes = append(dst.ViolationTypes, t)
			seen[t] = true
		}
	}
}

func coordKey(lat, lng float64) string {
	return fmt.Sprintf("%.*f,%.*f", coordPrecision, lat, coordPrecision, lng)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

package geo_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/model"
)

func records(t *testing.T, s string) []model.RawRecord {
	t.Helper()
	var out []model.RawRecord
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func stat(t *testing.T, district, violations, hotspots string) model.RawGeoStat {
	return model.RawGeoStat{
		District:             district,
		IndividualViolations: records(t, violations),
		Hotspots:             records(t, hotspots),
	}
}

func TestValid(t *testing.T) {
	assert.True(t, geo.Valid(12.5, 77.6))
	assert.True(t, geo.Valid(0, 77.6), "a single zero coordinate is legal")
	assert.True(t, geo.Valid(-90, 180))
	assert.False(t, geo.Valid(0, 0))
	assert.False(t, geo.Valid(91, 10))
	assert.False(t, geo.Valid(10, -180.5))
	assert.False(t, geo.Valid(math.NaN(), 10))
	assert.False(t, geo.Valid(10, math.Inf(1)))
}

func TestNormalizeValidityFilter(t *testing.T) {
	st := stat(t, "Central", `[
		{"id": "a", "latitude": 0, "longitude": 0},
		{"id": "b", "latitude": 91, "longitude": 77.6},
		{"id": "c", "latitude": "12.5", "longitude": "77.6"},
		{"id": "d", "lat": 12.9, "lng": 77.5},
		{"id": "e", "latitude": "abc", "longitude": 77.6},
		{"id": "f", "longitude": 77.6}
	]`, `[]`)
	set := geo.Normalize([]model.RawGeoStat{st})

	require.Len(t, set.Points, 2)
	assert.Equal(t, "c", set.Points[0].ID)
	assert.Equal(t, 12.5, set.Points[0].Latitude)
	assert.Equal(t, 77.6, set.Points[0].Longitude)
	assert.Equal(t, "d", set.Points[1].ID)
	assert.Equal(t, 4, set.Rejected)
}

func TestNormalizePointDefaults(t *testing.T) {
	st := stat(t, "North", `[
		{"lat": 12.1, "lng": 77.1, "status": "APPROVED", "violationType": "NO_HELMET", "timestamp": "2025-01-06T10:00:00Z"},
		{"lat": 12.2, "lng": 77.2, "address": "MG Road"}
	]`, `[]`)
	set := geo.Normalize([]model.RawGeoStat{st})
	require.Len(t, set.Points, 2)

	p := set.Points[0]
	assert.Equal(t, 1, p.Count)
	assert.Equal(t, "Unknown location, North", p.Address)
	assert.Equal(t, "APPROVED", p.Status)
	assert.Equal(t, "NO_HELMET", p.ViolationType)
	assert.Equal(t, 2025, p.Timestamp.Year())
	assert.Equal(t, "MG Road", set.Points[1].Address)

	withTime, err := json.Marshal(set.Points[0])
	require.NoError(t, err)
	assert.Contains(t, string(withTime), `"timestamp":`)
	without, err := json.Marshal(set.Points[1])
	require.NoError(t, err)
	assert.NotContains(t, string(without), "timestamp", "a point without a timestamp omits the field")
}

func TestNormalizeHotspotDefaults(t *testing.T) {
	st := model.RawGeoStat{City: "Pune", Hotspots: records(t, `[
		{"latitude": 18.5, "longitude": 73.8, "violationCount": 12, "statusCounts": {"REJECTED": 2, "APPROVED": 7, "PENDING": 3}},
		{"latitude": 18.6, "longitude": 73.9, "violationCount": "lots"},
		{"latitude": 18.7, "longitude": 73.7}
	]`)}
	set := geo.Normalize([]model.RawGeoStat{st})
	require.Len(t, set.Hotspots, 3)

	assert.Equal(t, 12, set.Hotspots[0].ViolationCount)
	assert.Equal(t, model.StatusCounts{Rejected: 2, Approved: 7, Pending: 3}, set.Hotspots[0].StatusCounts)
	assert.Equal(t, 0, set.Hotspots[1].ViolationCount)
	assert.Equal(t, model.StatusCounts{}, set.Hotspots[2].StatusCounts)
	assert.Equal(t, "Unknown location, Pune", set.Hotspots[2].Address)
	assert.Equal(t, "Pune", set.Hotspots[2].District)
}

func TestNormalizeUnknownDistrictPlaceholder(t *testing.T) {
	set := geo.Normalize([]model.RawGeoStat{{Hotspots: records(t, `[{"lat": 1, "lng": 1}]`)}})
	require.Len(t, set.Hotspots, 1)
	assert.NotEmpty(t, set.Hotspots[0].Address)
	assert.Contains(t, set.Hotspots[0].Address, "Unknown district")
}

func TestNormalizeDeduplicates(t *testing.T) {
	st := stat(t, "East", `[
		{"id": "x1", "lat": 10, "lng": 20},
		{"id": "x1", "lat": 11, "lng": 21},
		{"lat": 10, "lng": 20},
		{"lat": 10, "lng": 20}
	]`, `[
		{"lat": 10.000001, "lng": 20.000001, "violationCount": 3, "violationTypes": ["SPEEDING"], "statusCounts": {"PENDING": 3}},
		{"lat": 10, "lng": 20, "violationCount": 2, "violationTypes": ["SPEEDING", "NO_HELMET"], "statusCounts": {"APPROVED": 2}}
	]`)
	set := geo.Normalize([]model.RawGeoStat{st})

	// Points without an id are never merged.
	require.Len(t, set.Points, 3)
	assert.Equal(t, 10.0, set.Points[0].Latitude)

	require.Len(t, set.Hotspots, 1)
	h := set.Hotspots[0]
	assert.Equal(t, 5, h.ViolationCount)
	assert.Equal(t, model.StatusCounts{Approved: 2, Pending: 3}, h.StatusCounts)
	assert.Equal(t, []string{"SPEEDING", "NO_HELMET"}, h.ViolationTypes)
	assert.Equal(t, 2, set.Duplicates)
}

func TestNormalizeOrderPreserving(t *testing.T) {
	stats := []model.RawGeoStat{
		stat(t, "A", `[{"id": "3", "lat": 3, "lng": 3}, {"id": "1", "lat": 1, "lng": 1}]`, `[]`),
		stat(t, "B", `[{"id": "2", "lat": 2, "lng": 2}]`, `[]`),
	}
	first := geo.Normalize(stats)
	second := geo.Normalize(stats)
	assert.Equal(t, first, second)

	var ids []string
	for _, p := range first.Points {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)
}

func TestNormalizeEmpty(t *testing.T) {
	set := geo.Normalize(nil)
	assert.NotNil(t, set.Points)
	assert.NotNil(t, set.Hotspots)
	assert.Empty(t, set.Points)
	assert.Empty(t, set.Hotspots)
}

func TestDecodeStatsAliases(t *testing.T) {
	raws := records(t, `[
		{"districtName": "West", "cityName": "Mumbai", "violations": [{"lat": 19, "lng": 72.8}], "hotspots": [{"lat": 19.1, "lng": 72.9}]},
		{"_id": "South"}
	]`)
	stats := geo.DecodeStats(raws)
	require.Len(t, stats, 2)
	assert.Equal(t, "West", stats[0].District)
	assert.Equal(t, "Mumbai", stats[0].City)
	assert.Len(t, stats[0].IndividualViolations, 1)
	assert.Len(t, stats[0].Hotspots, 1)
	assert.Equal(t, "South", stats[1].District)
}

func TestHeatPoints(t *testing.T) {
	_, _, ok := geo.HeatPoints(model.GeoSet{})
	assert.False(t, ok)

	set := geo.Normalize([]model.RawGeoStat{stat(t, "C", `[]`, `[
		{"lat": 1, "lng": 1, "violationCount": 4},
		{"lat": 2, "lng": 2, "violationCount": 9}
	]`)})
	pts, max, ok := geo.HeatPoints(set)
	require.True(t, ok)
	assert.Len(t, pts, 2)
	assert.Equal(t, 9.0, max)

	set.Points = []model.NormalizedPoint{{Latitude: 5, Longitude: 5, Count: 1}}
	pts, max, _ = geo.HeatPoints(set)
	assert.Len(t, pts, 1, "individual points take precedence over hotspots")
	assert.Equal(t, 1.0, max)
}

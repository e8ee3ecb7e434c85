// Package model defines the canonical data types used throughout challan.
// These types are the single source of truth for time ranges, dated report
// counts, geospatial records and the result envelope every command returns.
package model

import (
	"time"
)

// ─── Time Ranges ──────────────────────────────────────────────────────────────

// RangeKind distinguishes fixed calendar windows from windows relative to now.
type RangeKind string

const (
	RangeAbsolute RangeKind = "absolute"
	RangeRelative RangeKind = "relative"
)

// TimeRangeState is either an absolute window or a relative token, plus the
// applied flag that decides whether a local override wins over the global one.
// StartDate/EndDate are nil when unset; an absolute range with either missing
// is not ready and must not be sent to the fetch layer.
type TimeRangeState struct {
	Kind          RangeKind  `json:"kind" yaml:"kind"`
	StartDate     *time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	RelativeToken string     `json:"relative_token" yaml:"relative_token"`
	IsApplied     bool       `json:"is_applied" yaml:"is_applied"`
}

// Window is a concrete [Start, End] pair of timestamps.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ─── Report Counts ────────────────────────────────────────────────────────────

// RawRecord is a JSON-shaped record exactly as the analytics API returned it.
// Field names are not contractually stable, so consumers probe aliases.
type RawRecord map[string]interface{}

// DatedCountRecord is the unit consumed by the bucketer.
// Date is the zero time when no temporal field could be parsed.
type DatedCountRecord struct {
	Date     time.Time `json:"date"`
	Reports  int       `json:"reports"`
	Approved int       `json:"approved"`
	Rejected int       `json:"rejected"`
	Pending  int       `json:"pending"`
	Raw      RawRecord `json:"-"`
}

// HasDate reports whether the record carried a parseable date.
func (r DatedCountRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// BucketRow is one aggregated period (day, week or month).
type BucketRow struct {
	Label         string    `json:"label"`
	StartOfPeriod time.Time `json:"start_of_period"`
	EndOfPeriod   time.Time `json:"end_of_period"`
	Reports       int       `json:"reports"`
	Approved      int       `json:"approved"`
	Rejected      int       `json:"rejected"`
	Pending       int       `json:"pending"`
	ToBeReviewed  int       `json:"to_be_reviewed"`
}

// ─── Geospatial ───────────────────────────────────────────────────────────────

// RawGeoStat is the backend shape per city/district. Hotspots and individual
// violations stay raw because their coordinate fields vary between aliases
// and stringified numbers.
type RawGeoStat struct {
	District             string      `json:"district"`
	City                 string      `json:"city"`
	Hotspots             []RawRecord `json:"hotspots"`
	IndividualViolations []RawRecord `json:"individualViolations"`
}

// StatusCounts tallies hotspot reports per review status.
type StatusCounts struct {
	Rejected int `json:"REJECTED"`
	Approved int `json:"APPROVED"`
	Pending  int `json:"PENDING"`
}

// NormalizedPoint is one individual violation with validated coordinates.
type NormalizedPoint struct {
	ID            string    `json:"id,omitempty"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Count         int       `json:"count"`
	Address       string    `json:"address"`
	District      string    `json:"district,omitempty"`
	Status        string    `json:"status,omitempty"`
	ViolationType string    `json:"violation_type,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitzero"`
}

// NormalizedHotspot is a pre-aggregated cluster with validated coordinates.
type NormalizedHotspot struct {
	Latitude       float64      `json:"latitude"`
	Longitude      float64      `json:"longitude"`
	ViolationCount int          `json:"violation_count"`
	Address        string       `json:"address"`
	District       string       `json:"district,omitempty"`
	StatusCounts   StatusCounts `json:"status_counts"`
	ViolationTypes []string     `json:"violation_types,omitempty"`
}

// GeoSet is the normalized output for one batch of RawGeoStats.
// Rejected counts candidates dropped by the validity filter; Duplicates
// counts candidates merged or skipped by deduplication.
type GeoSet struct {
	Points     []NormalizedPoint   `json:"points"`
	Hotspots   []NormalizedHotspot `json:"hotspots"`
	Rejected   int                 `json:"rejected"`
	Duplicates int                 `json:"duplicates"`
}

// HeatPoint is a weighted coordinate fed to the heat-rendering layer.
type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// ─── Views ────────────────────────────────────────────────────────────────────

// TokenWindow is a relative token resolved against a clock.
type TokenWindow struct {
	Token string    `json:"token"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RangeView describes the effective range of one chart scope.
// Source is "local" when the scope's override is applied, else "global".
type RangeView struct {
	Scope  string    `json:"scope"`
	Source string    `json:"source"`
	Kind   RangeKind `json:"kind"`
	Token  string    `json:"token,omitempty"`
	Start  time.Time `json:"start,omitzero"`
	End    time.Time `json:"end,omitzero"`
	Ready  bool      `json:"ready"`
	Key    string    `json:"key"`
}

// Intensity is a heat-scale computation and its inputs.
type Intensity struct {
	MaxObserved float64 `json:"max_observed"`
	Zoom        float64 `json:"zoom"`
	HasData     bool    `json:"has_data"`
	Max         float64 `json:"max_intensity"`
}

// Table is a pre-tabulated payload for ad-hoc listings.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance and cache metadata for a command result.
type ResultStats struct {
	CacheHit   bool  `json:"cache_hit"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindWindow    = "window"
	KindRange     = "range"
	KindBuckets   = "buckets"
	KindGeo       = "geo"
	KindHeat      = "heat"
	KindIntensity = "intensity"
	KindTable     = "table"
)

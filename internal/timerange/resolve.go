// Package timerange decides which time window applies to a chart.
//
// A chart sees two TimeRangeStates: the dashboard-wide global one and its own
// local one. The local state wins only while it is applied. Relative tokens
// are resolved against an injected clock so every call is deterministic.
// Nothing here keeps package-level state.
package timerange

import (
	"strings"
	"time"

	"github.com/derickschaefer/challan/internal/model"
)

// Relative tokens understood by the resolver.
const (
	Token1D  = "1d"
	Token7D  = "7d"
	Token30D = "30d"
	Token90D = "90d"
	Token1Y  = "1y"
	TokenYTD = "ytd"
	TokenMTD = "mtd"

	// DefaultToken replaces any token outside the enumerated set.
	DefaultToken = Token30D
)

// Tokens lists the enumerated relative tokens in display order.
var Tokens = []string{Token1D, Token7D, Token30D, Token90D, Token1Y, TokenYTD, TokenMTD}

// fixedDays are plain 24h multiples: no DST or month-length correction.
var fixedDays = map[string]int{
	Token1D:  1,
	Token7D:  7,
	Token30D: 30,
	Token90D: 90,
	Token1Y:  365,
}

// NormalizeToken lower-cases and trims token, substituting DefaultToken for
// anything outside the enumerated set.
func NormalizeToken(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	if _, ok := fixedDays[t]; ok {
		return t
	}
	if t == TokenYTD || t == TokenMTD {
		return t
	}
	return DefaultToken
}

// IsKnownToken reports whether token is in the enumerated set as given.
func IsKnownToken(token string) bool {
	return NormalizeToken(token) == strings.ToLower(strings.TrimSpace(token))
}

// Resolve converts a relative token to absolute bounds. End is always now.
// ytd and mtd start at local midnight of Jan 1st / the 1st of now's month.
func Resolve(token string, now time.Time) model.Window {
	var start time.Time
	switch t := NormalizeToken(token); t {
	case TokenYTD:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	case TokenMTD:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		start = now.Add(-time.Duration(fixedDays[t]) * 24 * time.Hour)
	}
	return model.Window{Start: start, End: now}
}

// ─── Clock ────────────────────────────────────────────────────────────────────

// Clock is the wall-clock source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in the host's local zone.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

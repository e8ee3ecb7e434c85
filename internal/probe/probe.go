// Package probe reads loosely-shaped JSON records whose field names vary
// between backend versions. Callers pass alias keys in priority order and
// get back the first value that both exists and coerces to the wanted type.
package probe

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/challan/internal/util"
)

// Record is any JSON object decoded into a generic map.
type Record = map[string]interface{}

// DateKeys is the temporal alias order used for dated count records.
var DateKeys = []string{"date", "period", "week", "month"}

// First returns the first non-nil value among keys, with the key it came from.
func First(rec Record, keys ...string) (interface{}, string, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

// Float resolves a coordinate-like value. For each key a numeric value is
// preferred over a stringified one; keys are tried in order, so
// Float(rec, "latitude", "lat") probes latitude-number, latitude-string,
// lat-number, lat-string. NaN and ±Inf count as absent.
func Float(rec Record, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := number(v); ok && isFinite(f) {
			return f, true
		}
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && isFinite(f) {
				return f, true
			}
		}
	}
	return 0, false
}

// Int resolves a count. Fractional values are truncated toward zero.
func Int(rec Record, keys ...string) (int, bool) {
	f, ok := Float(rec, keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// IntOr returns Int or def when no key resolves.
func IntOr(rec Record, def int, keys ...string) int {
	if n, ok := Int(rec, keys...); ok {
		return n
	}
	return def
}

// String returns the first non-empty string among keys. Numbers are
// formatted so numeric ids still resolve.
func String(rec Record, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case json.Number:
			return v.String(), true
		case int:
			return strconv.Itoa(v), true
		}
	}
	return "", false
}

// Time resolves a timestamp in loc. Strings go through util.ParseTimestamp;
// numbers are epoch milliseconds. A key whose value fails to parse is
// skipped in favour of the next alias.
func Time(rec Record, loc *time.Location, keys ...string) (time.Time, string, bool) {
	if loc == nil {
		loc = time.Local
	}
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		switch tv := v.(type) {
		case time.Time:
			if !tv.IsZero() {
				return tv.In(loc), k, true
			}
		case string:
			if t, err := util.ParseTimestamp(tv, loc); err == nil {
				return t, k, true
			}
		default:
			if ms, ok := number(v); ok && isFinite(ms) {
				return time.UnixMilli(int64(ms)).In(loc), k, true
			}
		}
	}
	return time.Time{}, "", false
}

// Records returns the slice stored under the first matching key, keeping
// only elements that are JSON objects.
func Records(rec Record, keys ...string) []Record {
	v, _, ok := First(rec, keys...)
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		if typed, ok := v.([]Record); ok {
			return typed
		}
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

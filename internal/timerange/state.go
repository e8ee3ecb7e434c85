package timerange

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/util"
)

// Absolute builds an absolute state from calendar dates. Zero times leave the
// corresponding bound unset.
func Absolute(start, end time.Time, applied bool) model.TimeRangeState {
	s := model.TimeRangeState{Kind: model.RangeAbsolute, RelativeToken: DefaultToken, IsApplied: applied}
	if !start.IsZero() {
		d := util.StartOfDay(start)
		s.StartDate = &d
	}
	if !end.IsZero() {
		d := util.StartOfDay(end)
		s.EndDate = &d
	}
	return s
}

// Relative builds a relative state; unknown tokens collapse to DefaultToken.
func Relative(token string, applied bool) model.TimeRangeState {
	return model.TimeRangeState{
		Kind:          model.RangeRelative,
		RelativeToken: NormalizeToken(token),
		IsApplied:     applied,
	}
}

// Default is the initial state of both global and local ranges.
func Default() model.TimeRangeState {
	return Relative(DefaultToken, false)
}

// Ready reports whether s can be sent to the fetch layer. Absolute ranges
// need both dates, with start not after end.
func Ready(s model.TimeRangeState) bool {
	if s.Kind != model.RangeAbsolute {
		return true
	}
	if s.StartDate == nil || s.EndDate == nil {
		return false
	}
	return !s.StartDate.After(*s.EndDate)
}

// WindowOf returns the concrete bounds of s. Absolute ranges span from the
// start date's midnight to the last instant of the end date. ok is false
// when s is not Ready.
func WindowOf(s model.TimeRangeState, now time.Time) (model.Window, bool) {
	if !Ready(s) {
		return model.Window{}, false
	}
	if s.Kind == model.RangeAbsolute {
		return model.Window{
			Start: util.StartOfDay(*s.StartDate),
			End:   util.EndOfDay(*s.EndDate),
		}, true
	}
	return Resolve(s.RelativeToken, now), true
}

// ─── Fetch Parameters ─────────────────────────────────────────────────────────

// Params is what the fetch layer receives for one chart.
type Params struct {
	Kind   model.RangeKind `json:"kind"`
	Token  string          `json:"token,omitempty"`
	Window model.Window    `json:"window"`
}

// ParamsFor builds fetch parameters for the effective state. ok is false
// when the range is not ready; callers must skip the fetch in that case.
func ParamsFor(s model.TimeRangeState, now time.Time) (Params, bool) {
	w, ok := WindowOf(s, now)
	if !ok {
		return Params{}, false
	}
	p := Params{Kind: s.Kind, Window: w}
	if s.Kind != model.RangeAbsolute {
		p.Kind = model.RangeRelative
		p.Token = NormalizeToken(s.RelativeToken)
	}
	return p, true
}

// Values encodes p as query parameters for the analytics API.
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Kind == model.RangeAbsolute {
		v.Set("startDate", util.FormatDate(p.Window.Start))
		v.Set("endDate", util.FormatDate(p.Window.End))
		return v
	}
	v.Set("startDate", p.Window.Start.Format(time.RFC3339))
	v.Set("endDate", p.Window.End.Format(time.RFC3339))
	v.Set("range", p.Token)
	return v
}

// ─── Memo Key ─────────────────────────────────────────────────────────────────

// Key derives the memoization key kind|start|end|token|isApplied. Two states
// with equal keys select the same data, so callers skip refetching.
func Key(s model.TimeRangeState) string {
	kind := s.Kind
	if kind != model.RangeAbsolute {
		kind = model.RangeRelative
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		kind,
		dateOrEmpty(s.StartDate),
		dateOrEmpty(s.EndDate),
		NormalizeToken(s.RelativeToken),
		strconv.FormatBool(s.IsApplied),
	)
}

// Current reports whether data fetched for the window stored still serves s
// at now. Absolute windows never move. Relative windows follow the clock, so
// they stay current only while both bounds fall on the same calendar days.
func Current(s model.TimeRangeState, stored model.Window, now time.Time) bool {
	w, ok := WindowOf(s, now)
	if !ok {
		return false
	}
	if s.Kind == model.RangeAbsolute {
		return true
	}
	return util.FormatDate(stored.Start.In(now.Location())) == util.FormatDate(w.Start) &&
		util.FormatDate(stored.End.In(now.Location())) == util.FormatDate(w.End)
}

func dateOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return util.FormatDate(*t)
}

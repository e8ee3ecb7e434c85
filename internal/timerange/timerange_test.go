package timerange_test

import (
	"testing"
	"time"

	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/timerange"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// now is a fixed mid-year, mid-month instant in UTC.
var now = time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ─── Resolve ──────────────────────────────────────────────────────────────────

func TestResolveTotality(t *testing.T) {
	for _, tok := range timerange.Tokens {
		w := timerange.Resolve(tok, now)
		if !w.End.Equal(now) {
			t.Errorf("%s: end %s != now", tok, w.End)
		}
		if w.Start.After(w.End) {
			t.Errorf("%s: start %s after end %s", tok, w.Start, w.End)
		}
	}
}

func TestResolveFixedDurations(t *testing.T) {
	cases := map[string]int{"1d": 1, "7d": 7, "30d": 30, "90d": 90, "1y": 365}
	for tok, days := range cases {
		w := timerange.Resolve(tok, now)
		if got := w.End.Sub(w.Start); got != time.Duration(days)*24*time.Hour {
			t.Errorf("%s: span %s, want %d days", tok, got, days)
		}
	}
}

func TestResolveCalendarTokens(t *testing.T) {
	ytd := timerange.Resolve("ytd", now)
	if !ytd.Start.Equal(day(2025, 1, 1)) {
		t.Errorf("ytd start: got %s", ytd.Start)
	}
	mtd := timerange.Resolve("mtd", now)
	if !mtd.Start.Equal(day(2025, 6, 1)) {
		t.Errorf("mtd start: got %s", mtd.Start)
	}
}

func TestResolveUnknownTokenFallsBackTo30d(t *testing.T) {
	want := timerange.Resolve("30d", now)
	for _, tok := range []string{"bogus", "", "14d", "YTDX"} {
		if got := timerange.Resolve(tok, now); got != want {
			t.Errorf("%q: got %+v, want %+v", tok, got, want)
		}
	}
}

func TestNormalizeTokenCaseInsensitive(t *testing.T) {
	if got := timerange.NormalizeToken(" YTD "); got != "ytd" {
		t.Errorf("got %q", got)
	}
	if timerange.IsKnownToken("45d") {
		t.Error("45d should not be a known token")
	}
	if !timerange.IsKnownToken("90d") {
		t.Error("90d should be a known token")
	}
}

// ─── State / Ready ────────────────────────────────────────────────────────────

func TestAbsoluteReadiness(t *testing.T) {
	if timerange.Ready(timerange.Absolute(day(2025, 1, 1), time.Time{}, true)) {
		t.Error("absolute range without end must not be ready")
	}
	if timerange.Ready(timerange.Absolute(time.Time{}, day(2025, 1, 1), true)) {
		t.Error("absolute range without start must not be ready")
	}
	if timerange.Ready(timerange.Absolute(day(2025, 2, 1), day(2025, 1, 1), true)) {
		t.Error("inverted absolute range must not be ready")
	}
	if !timerange.Ready(timerange.Absolute(day(2025, 1, 1), day(2025, 1, 31), true)) {
		t.Error("complete absolute range should be ready")
	}
	if !timerange.Ready(timerange.Relative("nonsense", false)) {
		t.Error("relative ranges are always ready")
	}
}

func TestWindowOfAbsoluteCoversWholeEndDay(t *testing.T) {
	s := timerange.Absolute(day(2025, 1, 6), day(2025, 1, 12), true)
	w, ok := timerange.WindowOf(s, now)
	if !ok {
		t.Fatal("expected ready window")
	}
	if !w.Start.Equal(day(2025, 1, 6)) {
		t.Errorf("start: got %s", w.Start)
	}
	if want := day(2025, 1, 13).Add(-time.Nanosecond); !w.End.Equal(want) {
		t.Errorf("end: got %s, want %s", w.End, want)
	}
}

func TestParamsForNotReady(t *testing.T) {
	if _, ok := timerange.ParamsFor(timerange.Absolute(day(2025, 1, 6), time.Time{}, true), now); ok {
		t.Error("not-ready range must not produce fetch params")
	}
}

func TestParamsValues(t *testing.T) {
	p, ok := timerange.ParamsFor(timerange.Absolute(day(2025, 1, 6), day(2025, 1, 12), true), now)
	if !ok {
		t.Fatal("expected params")
	}
	v := p.Values()
	if v.Get("startDate") != "2025-01-06" || v.Get("endDate") != "2025-01-12" || v.Get("range") != "" {
		t.Errorf("absolute values: %v", v)
	}

	p, _ = timerange.ParamsFor(timerange.Relative("bogus", true), now)
	v = p.Values()
	if v.Get("range") != "30d" {
		t.Errorf("relative range token: got %q", v.Get("range"))
	}
	if v.Get("endDate") != now.Format(time.RFC3339) {
		t.Errorf("relative end: got %q", v.Get("endDate"))
	}
}

// ─── Select ───────────────────────────────────────────────────────────────────

func TestSelectPrecedence(t *testing.T) {
	global := timerange.Relative("7d", false)
	local := timerange.Absolute(day(2025, 1, 1), day(2025, 1, 31), true)

	if got := timerange.Select(global, local); timerange.Key(got) != timerange.Key(local) {
		t.Errorf("applied local should win, got %+v", got)
	}

	local.IsApplied = false
	if got := timerange.Select(global, local); timerange.Key(got) != timerange.Key(global) {
		t.Errorf("unapplied local should yield global, got %+v", got)
	}
}

func TestSelectDoesNotMerge(t *testing.T) {
	global := timerange.Absolute(day(2025, 1, 1), day(2025, 1, 31), false)
	local := timerange.Relative("ytd", true)
	got := timerange.Select(global, local)
	if got.StartDate != nil || got.EndDate != nil {
		t.Errorf("selected local state picked up global dates: %+v", got)
	}
}

func TestKeyStability(t *testing.T) {
	a := timerange.Absolute(day(2025, 1, 1), day(2025, 1, 31), true)
	b := timerange.Absolute(day(2025, 1, 1), day(2025, 1, 31), true)
	if timerange.Key(a) != timerange.Key(b) {
		t.Error("equal states must share a key")
	}
	if want := "absolute|2025-01-01|2025-01-31|30d|true"; timerange.Key(a) != want {
		t.Errorf("key: got %q, want %q", timerange.Key(a), want)
	}
	if timerange.Key(timerange.Relative("bogus", false)) != timerange.Key(timerange.Relative("30d", false)) {
		t.Error("fallback token should key like 30d")
	}
	b.IsApplied = false
	if timerange.Key(a) == timerange.Key(b) {
		t.Error("applied flag must be part of the key")
	}
}

func TestCurrentRelativeFollowsClock(t *testing.T) {
	s := timerange.Relative("7d", true)
	fetchedAt := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	stored := timerange.Resolve("7d", fetchedAt)

	if !timerange.Current(s, stored, fetchedAt.Add(6*time.Hour)) {
		t.Error("same-day window should still be current")
	}
	later := fetchedAt.AddDate(0, 0, 40)
	if timerange.Current(s, stored, later) {
		t.Errorf("window %s..%s must not serve %s", stored.Start, stored.End, later)
	}
	if timerange.Key(s) != timerange.Key(timerange.Relative("7d", true)) {
		t.Error("key alone cannot tell the two windows apart")
	}
}

func TestCurrentAbsoluteIsFixed(t *testing.T) {
	s := timerange.Absolute(day(2025, 1, 1), day(2025, 1, 31), true)
	stored, _ := timerange.WindowOf(s, now)
	if !timerange.Current(s, stored, now.AddDate(1, 0, 0)) {
		t.Error("absolute windows never go stale")
	}
	incomplete := timerange.Absolute(day(2025, 1, 1), time.Time{}, true)
	if timerange.Current(incomplete, stored, now) {
		t.Error("a not-ready state has no current window")
	}
}

// ─── Board / Tracker ──────────────────────────────────────────────────────────

func TestBoardScopes(t *testing.T) {
	b := timerange.NewBoard(timerange.Relative("90d", false))

	if got := b.Effective("weekly"); got.RelativeToken != "90d" {
		t.Errorf("unset local should follow global, got %+v", got)
	}

	b.SetLocal("weekly", timerange.Relative("7d", false))
	if got := b.Effective("weekly"); got.RelativeToken != "90d" {
		t.Errorf("unapplied local should follow global, got %+v", got)
	}
	if !b.ApplyLocal("weekly") {
		t.Fatal("ApplyLocal refused a relative range")
	}
	if got := b.Effective("weekly"); got.RelativeToken != "7d" {
		t.Errorf("applied local should win, got %+v", got)
	}
	if got := b.Effective("monthly"); got.RelativeToken != "90d" {
		t.Errorf("other scopes unaffected, got %+v", got)
	}

	b.ResetLocal("weekly")
	if got := b.Effective("weekly"); got.RelativeToken != "90d" {
		t.Errorf("reset local should follow global, got %+v", got)
	}
	if got := b.Local("weekly"); got.RelativeToken != "7d" || got.IsApplied {
		t.Errorf("reset keeps the local selection unapplied, got %+v", got)
	}
}

func TestBoardRefusesIncompleteAbsolute(t *testing.T) {
	b := timerange.NewBoard(timerange.Default())
	b.SetLocal("map", timerange.Absolute(day(2025, 1, 1), time.Time{}, false))
	if b.ApplyLocal("map") {
		t.Error("incomplete absolute range must not be applied")
	}
	if b.Effective("map").Kind != model.RangeRelative {
		t.Error("scope should still follow the global range")
	}
}

func TestBoardView(t *testing.T) {
	b := timerange.NewBoard(timerange.Relative("7d", false))
	b.SetLocal("map", timerange.Absolute(day(2025, 3, 1), day(2025, 3, 31), true))

	v := b.View("weekly", now)
	if v.Source != "global" || v.Token != "7d" || !v.Ready {
		t.Errorf("global view: %+v", v)
	}
	if !v.Start.Equal(now.AddDate(0, 0, -7)) || !v.End.Equal(now) {
		t.Errorf("global window: %s - %s", v.Start, v.End)
	}

	v = b.View("map", now)
	if v.Source != "local" || v.Kind != model.RangeAbsolute || v.Token != "" {
		t.Errorf("local view: %+v", v)
	}
	if !v.Start.Equal(day(2025, 3, 1)) || v.End.Day() != 31 {
		t.Errorf("local window: %s - %s", v.Start, v.End)
	}
	if v.Key != timerange.Key(b.Effective("map")) {
		t.Errorf("key mismatch: %s", v.Key)
	}
}

func TestViewNotReady(t *testing.T) {
	local := timerange.Absolute(day(2025, 3, 31), day(2025, 3, 1), true)
	v := timerange.View("map", timerange.Default(), local, now)
	if v.Ready || !v.Start.IsZero() {
		t.Errorf("reversed absolute range must not be ready: %+v", v)
	}
}

func TestTrackerNeedsFetch(t *testing.T) {
	var tr timerange.Tracker
	s := timerange.Relative("7d", true)
	if !tr.NeedsFetch("weekly", s) {
		t.Error("first sighting should need a fetch")
	}
	if tr.NeedsFetch("weekly", timerange.Relative("7d", true)) {
		t.Error("identical state should not refetch")
	}
	if !tr.NeedsFetch("weekly", timerange.Relative("30d", true)) {
		t.Error("changed state should refetch")
	}
	if !tr.NeedsFetch("monthly", s) {
		t.Error("scopes are tracked independently")
	}
	tr.Forget("monthly")
	if !tr.NeedsFetch("monthly", s) {
		t.Error("forgotten scope should refetch")
	}
	if tr.NeedsFetch("map", timerange.Absolute(day(2025, 1, 1), time.Time{}, true)) {
		t.Error("not-ready range must never be fetched")
	}
}

// ─── Filter ───────────────────────────────────────────────────────────────────

func TestFilterKeepsUnparseable(t *testing.T) {
	recs := []model.DatedCountRecord{
		{Date: day(2025, 1, 5), Reports: 1},
		{Date: day(2025, 1, 6), Reports: 2},
		{Reports: 3}, // no date
		{Date: day(2025, 1, 13), Reports: 4},
	}
	w := model.Window{Start: day(2025, 1, 6), End: day(2025, 1, 12)}
	kept, unparsed := timerange.Filter(recs, w)
	if unparsed != 1 {
		t.Errorf("unparsed: got %d", unparsed)
	}
	if len(kept) != 2 || kept[0].Reports != 2 || kept[1].Reports != 3 {
		t.Errorf("kept: %+v", kept)
	}
}

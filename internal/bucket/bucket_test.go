package bucket_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// now pins "current year" labelling to 2025.
var now = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

// date parses "YYYY-MM-DD" as UTC midnight and panics on error.
func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic("date: " + err.Error())
	}
	return t
}

// rec builds a dated record with the given counts.
func rec(d string, reports, approved, rejected int) model.DatedCountRecord {
	return model.DatedCountRecord{Date: date(d), Reports: reports, Approved: approved, Rejected: rejected}
}

// decode parses a JSON array of raw records.
func decode(t *testing.T, s string) []model.RawRecord {
	t.Helper()
	var raws []model.RawRecord
	if err := json.Unmarshal([]byte(s), &raws); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return raws
}

// ─── Decode ───────────────────────────────────────────────────────────────────

func TestDecodeProbesDateAliases(t *testing.T) {
	raws := decode(t, `[
		{"date": "2025-01-06", "reports": 3},
		{"period": "2025-01-07", "reports": 2, "approved": 1},
		{"week": "2025-W03", "totalReports": 5},
		{"month": "2025-02", "reports": "4"},
		{"reports": 9}
	]`)
	recs := bucket.Decode(raws, time.UTC)
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
	wantDates := []string{"2025-01-06", "2025-01-07", "2025-01-13", "2025-02-01"}
	for i, d := range wantDates {
		if !recs[i].Date.Equal(date(d)) {
			t.Errorf("recs[%d].Date: got %s, want %s", i, recs[i].Date, d)
		}
	}
	if recs[1].Approved != 1 || recs[2].Reports != 5 || recs[3].Reports != 4 {
		t.Errorf("count aliases not resolved: %+v", recs)
	}
	if recs[4].HasDate() {
		t.Error("record without temporal field should have no date")
	}
}

func TestDecodePrefersDateOverPeriod(t *testing.T) {
	recs := bucket.Decode(decode(t, `[{"date": "2025-01-06", "period": "2024-12-01"}]`), time.UTC)
	if !recs[0].Date.Equal(date("2025-01-06")) {
		t.Errorf("date should win over period, got %s", recs[0].Date)
	}
}

// ─── Week ─────────────────────────────────────────────────────────────────────

func TestWeekScenario(t *testing.T) {
	recs := bucket.Decode(decode(t, `[
		{"date": "2025-01-06", "reports": 3},
		{"date": "2025-01-07", "reports": 2},
		{"date": "2025-01-13", "reports": 5}
	]`), time.UTC)
	rows, skipped := bucket.BucketBy(recs, bucket.Week, now)
	if skipped != 0 {
		t.Errorf("skipped: got %d", skipped)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].StartOfPeriod.Equal(date("2025-01-06")) || rows[0].Reports != 5 {
		t.Errorf("row 0: %+v", rows[0])
	}
	if !rows[1].StartOfPeriod.Equal(date("2025-01-13")) || rows[1].Reports != 5 {
		t.Errorf("row 1: %+v", rows[1])
	}
}

func TestWeekSundayBelongsToPrecedingMonday(t *testing.T) {
	// 2025-01-12 is a Sunday.
	if got := bucket.WeekStart(date("2025-01-12")); !got.Equal(date("2025-01-06")) {
		t.Errorf("Sunday: got %s, want 2025-01-06", got)
	}
	if got := bucket.WeekStart(date("2025-01-13")); !got.Equal(date("2025-01-13")) {
		t.Errorf("Monday: got %s", got)
	}
	if got := bucket.WeekStart(time.Date(2025, 1, 8, 23, 59, 0, 0, time.UTC)); !got.Equal(date("2025-01-06")) {
		t.Errorf("Wednesday evening: got %s", got)
	}
}

func TestWeekInvariantAcrossNWeeks(t *testing.T) {
	const weeks = 6
	start := date("2024-12-30") // Monday
	var recs []model.DatedCountRecord
	want := make([]int, weeks)
	// Feed days in reverse to check sorting.
	for d := weeks*7 - 1; d >= 0; d-- {
		n := d%5 + 1
		recs = append(recs, model.DatedCountRecord{Date: start.AddDate(0, 0, d), Reports: n})
		want[d/7] += n
	}
	rows, _ := bucket.BucketBy(recs, bucket.Week, now)
	if len(rows) != weeks {
		t.Fatalf("expected %d rows, got %d", weeks, len(rows))
	}
	for i, r := range rows {
		if r.Reports != want[i] {
			t.Errorf("week %d: reports %d, want %d", i, r.Reports, want[i])
		}
		if i > 0 && !rows[i-1].StartOfPeriod.Before(r.StartOfPeriod) {
			t.Errorf("rows not ascending at %d", i)
		}
		if !r.StartOfPeriod.Equal(start.AddDate(0, 0, 7*i)) {
			t.Errorf("week %d starts %s", i, r.StartOfPeriod)
		}
	}
}

func TestWeekLabels(t *testing.T) {
	cases := []struct {
		start string
		want  string
	}{
		{"2025-01-06", "Jan 6-12"},
		{"2025-01-27", "Jan 27-Feb 2"},
		{"2024-12-30", "Dec 30-Jan 5, 2024"},
		{"2024-03-04", "Mar 4-10, 2024"},
	}
	for _, c := range cases {
		if got := bucket.WeekLabel(date(c.start), now); got != c.want {
			t.Errorf("%s: got %q, want %q", c.start, got, c.want)
		}
	}

	// A week crossing New Year takes its year from the first day.
	lastYear := date("2024-12-31")
	if got := bucket.WeekLabel(date("2024-12-30"), lastYear); got != "Dec 30-Jan 5" {
		t.Errorf("week starting in now's year: got %q", got)
	}
}

func TestWeekPeriodBounds(t *testing.T) {
	rows, _ := bucket.BucketBy([]model.DatedCountRecord{rec("2025-01-08", 1, 0, 0)}, bucket.Week, now)
	want := date("2025-01-13").Add(-time.Nanosecond)
	if !rows[0].EndOfPeriod.Equal(want) {
		t.Errorf("end: got %s, want %s", rows[0].EndOfPeriod, want)
	}
}

// ─── Month ────────────────────────────────────────────────────────────────────

func TestMonthBucketing(t *testing.T) {
	recs := []model.DatedCountRecord{
		rec("2025-02-14", 4, 1, 1),
		rec("2024-12-31", 2, 0, 0),
		rec("2025-02-01", 6, 2, 0),
		rec("2025-01-15", 1, 0, 0),
	}
	rows, _ := bucket.BucketBy(recs, bucket.Month, now)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	wantLabels := []string{"Dec 2024", "Jan", "Feb"}
	for i, l := range wantLabels {
		if rows[i].Label != l {
			t.Errorf("row %d label: got %q, want %q", i, rows[i].Label, l)
		}
	}
	feb := rows[2]
	if feb.Reports != 10 || feb.Approved != 3 || feb.Rejected != 1 || feb.ToBeReviewed != 6 {
		t.Errorf("feb: %+v", feb)
	}
	if !feb.EndOfPeriod.Equal(date("2025-03-01").Add(-time.Nanosecond)) {
		t.Errorf("feb end: %s", feb.EndOfPeriod)
	}
}

// ─── Day ──────────────────────────────────────────────────────────────────────

func TestDayPassThrough(t *testing.T) {
	recs := []model.DatedCountRecord{
		rec("2025-01-07", 2, 0, 0),
		rec("2025-01-06", 3, 0, 0),
		rec("2025-01-06", 1, 0, 0),
	}
	rows, _ := bucket.BucketBy(recs, bucket.Day, now)
	if len(rows) != 3 {
		t.Fatalf("day granularity should not merge, got %d rows", len(rows))
	}
	if rows[0].Label != "Jan 6" || rows[0].Reports != 3 || rows[1].Reports != 1 || rows[2].Label != "Jan 7" {
		t.Errorf("rows: %+v", rows)
	}
}

// ─── Edge cases ───────────────────────────────────────────────────────────────

func TestUnparseableRecordsSkipped(t *testing.T) {
	recs := bucket.Decode(decode(t, `[
		{"date": "not a date", "reports": 7},
		{"reports": 8},
		{"date": "2025-01-06", "reports": 1}
	]`), time.UTC)
	rows, skipped := bucket.BucketBy(recs, bucket.Week, now)
	if skipped != 2 {
		t.Errorf("skipped: got %d, want 2", skipped)
	}
	if len(rows) != 1 || rows[0].Reports != 1 {
		t.Errorf("rows: %+v", rows)
	}
}

func TestToBeReviewedFloor(t *testing.T) {
	if got := bucket.ToBeReviewed(5, 10, 0); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := bucket.ToBeReviewed(10, 3, 2); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
	rows, _ := bucket.BucketBy([]model.DatedCountRecord{rec("2025-01-06", 5, 10, 0)}, bucket.Week, now)
	if rows[0].ToBeReviewed != 0 {
		t.Errorf("row toBeReviewed: got %d", rows[0].ToBeReviewed)
	}
}

func TestEmptyInput(t *testing.T) {
	for _, g := range []bucket.Granularity{bucket.Day, bucket.Week, bucket.Month} {
		rows, skipped := bucket.BucketBy(nil, g, now)
		if rows == nil || len(rows) != 0 || skipped != 0 {
			t.Errorf("%s: expected empty non-nil rows, got %v (%d)", g, rows, skipped)
		}
	}
}

func TestParseGranularity(t *testing.T) {
	for in, want := range map[string]bucket.Granularity{"day": bucket.Day, "Weekly": bucket.Week, " month ": bucket.Month} {
		got, err := bucket.ParseGranularity(in)
		if err != nil || got != want {
			t.Errorf("%q: got %q, %v", in, got, err)
		}
	}
	if _, err := bucket.ParseGranularity("quarter"); err == nil {
		t.Error("expected error for quarter")
	}
}

package util_test

import (
	"errors"
	"testing"
	"time"

	"github.com/derickschaefer/challan/internal/util"
)

func TestParseTimestampLayouts(t *testing.T) {
	utc := time.UTC
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-06", time.Date(2025, 1, 6, 0, 0, 0, 0, utc)},
		{"2025-01-06T10:30:00", time.Date(2025, 1, 6, 10, 30, 0, 0, utc)},
		{"2025-01-06 10:30:00", time.Date(2025, 1, 6, 10, 30, 0, 0, utc)},
		{"2025-01-06T10:30:00Z", time.Date(2025, 1, 6, 10, 30, 0, 0, utc)},
		{"2025-01-06T12:30:00+02:00", time.Date(2025, 1, 6, 10, 30, 0, 0, utc)},
		{"2025-03", time.Date(2025, 3, 1, 0, 0, 0, 0, utc)},
		{"2025-W02", time.Date(2025, 1, 6, 0, 0, 0, 0, utc)},
		{"2026-W01", time.Date(2025, 12, 29, 0, 0, 0, 0, utc)},
	}
	for _, c := range cases {
		got, err := util.ParseTimestamp(c.in, utc)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", c.in, err)
			continue
		}
		if !got.Equal(c.want) {
			t.Errorf("%q: got %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "yesterday", "2025-13-01", "06/01/2025", "2025-W54", "2021-W53"} {
		if _, err := util.ParseTimestamp(in, time.UTC); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestParseDateIsLocalMidnight(t *testing.T) {
	d, err := util.ParseDate("2025-02-03")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Location() != time.Local || d.Hour() != 0 || d.Day() != 3 {
		t.Errorf("unexpected parse result %s", d)
	}
	if _, err := util.ParseDate("2025/02/03"); err == nil {
		t.Error("expected error for slash-separated date")
	}
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2025, 1, 6, 15, 4, 5, 6, time.UTC)
	if got := util.StartOfDay(ts); !got.Equal(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfDay: got %s", got)
	}
	want := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if got := util.EndOfDay(ts); !got.Equal(want) {
		t.Errorf("EndOfDay: got %s", got)
	}
}

func TestMultiError(t *testing.T) {
	var m util.MultiError
	if m.Err() != nil {
		t.Fatal("empty MultiError should be nil")
	}
	m.Add(nil)
	m.Add(errors.New("a"))
	m.Add(errors.New("b"))
	if got := m.Err().Error(); got != "a; b" {
		t.Errorf("got %q", got)
	}
}

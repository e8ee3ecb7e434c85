// Package bucket re-buckets dated report counts into day, week or month rows
// for charting. Functions are pure apart from debug logging of skipped
// records; no I/O.
package bucket

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/probe"
	"github.com/derickschaefer/challan/internal/util"
)

// Granularity is the target bucket size.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts day|week|month and their -ly forms.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return Day, nil
	case "week", "weekly":
		return Week, nil
	case "month", "monthly":
		return Month, nil
	}
	return "", fmt.Errorf("unknown granularity %q (use day, week or month)", s)
}

// Count field aliases, first match wins.
var (
	reportKeys   = []string{"reports", "totalReports", "total", "count"}
	approvedKeys = []string{"approved", "approvedReports"}
	rejectedKeys = []string{"rejected", "rejectedReports"}
	pendingKeys  = []string{"pending", "pendingReports"}
)

// ─── Decode ───────────────────────────────────────────────────────────────────

// Decode converts raw API records into DatedCountRecords. The date is probed
// under date, period, week and month in that order; a record with none of
// them parseable keeps a zero Date. Missing counts default to 0.
func Decode(raws []model.RawRecord, loc *time.Location) []model.DatedCountRecord {
	out := make([]model.DatedCountRecord, 0, len(raws))
	for _, raw := range raws {
		rec := model.DatedCountRecord{
			Reports:  probe.IntOr(raw, 0, reportKeys...),
			Approved: probe.IntOr(raw, 0, approvedKeys...),
			Rejected: probe.IntOr(raw, 0, rejectedKeys...),
			Pending:  probe.IntOr(raw, 0, pendingKeys...),
			Raw:      raw,
		}
		if t, _, ok := probe.Time(raw, loc, probe.DateKeys...); ok {
			rec.Date = t
		}
		out = append(out, rec)
	}
	return out
}

// ─── BucketBy ─────────────────────────────────────────────────────────────────

// BucketBy groups records into rows of granularity g, summing counts per
// bucket, and returns the rows sorted ascending by period start. Records
// without a date are skipped and counted in skipped. now decides which
// labels omit the year.
func BucketBy(records []model.DatedCountRecord, g Granularity, now time.Time) (rows []model.BucketRow, skipped int) {
	rows = make([]model.BucketRow, 0)
	index := make(map[string]int) // period key → position in rows

	for _, r := range records {
		if !r.HasDate() {
			skipped++
			slog.Debug("bucket: skipping record without parseable date", "granularity", g, "raw", r.Raw)
			continue
		}

		if g == Day {
			row := newRow(r.Date, Day, now)
			addCounts(&row, r)
			rows = append(rows, row)
			continue
		}

		key, start := periodKey(r.Date, g)
		i, ok := index[key]
		if !ok {
			rows = append(rows, newRow(start, g, now))
			i = len(rows) - 1
			index[key] = i
		}
		addCounts(&rows[i], r)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StartOfPeriod.Before(rows[j].StartOfPeriod)
	})
	for i := range rows {
		rows[i].ToBeReviewed = ToBeReviewed(rows[i].Reports, rows[i].Approved, rows[i].Rejected)
	}
	return rows, skipped
}

// ToBeReviewed is max(0, reports - (approved + rejected)).
func ToBeReviewed(reports, approved, rejected int) int {
	if n := reports - (approved + rejected); n > 0 {
		return n
	}
	return 0
}

func addCounts(row *model.BucketRow, r model.DatedCountRecord) {
	row.Reports += r.Reports
	row.Approved += r.Approved
	row.Rejected += r.Rejected
	row.Pending += r.Pending
}

// ─── Periods ──────────────────────────────────────────────────────────────────

// WeekStart returns the Monday 00:00 of t's week. Sunday belongs to the week
// that ends on it, so it shifts back six days.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return util.StartOfDay(t).AddDate(0, 0, -offset)
}

// periodKey returns a sortable string key and canonical start for a period.
func periodKey(t time.Time, g Granularity) (string, time.Time) {
	switch g {
	case Month:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return fmt.Sprintf("%04d-%02d", t.Year(), t.Month()), start
	default: // week
		start := WeekStart(t)
		return util.FormatDate(start), start
	}
}

// newRow builds an empty row for the period beginning at start.
func newRow(start time.Time, g Granularity, now time.Time) model.BucketRow {
	var end time.Time
	var label string
	switch g {
	case Day:
		start = util.StartOfDay(start)
		end = util.EndOfDay(start)
		label = monthDay(start)
	case Week:
		last := start.AddDate(0, 0, 6)
		end = util.EndOfDay(last)
		label = WeekLabel(start, now)
	case Month:
		end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		label = MonthLabel(start, now)
	}
	return model.BucketRow{Label: label, StartOfPeriod: start, EndOfPeriod: end}
}

// ─── Labels ───────────────────────────────────────────────────────────────────

func monthDay(t time.Time) string {
	return t.Format("Jan 2")
}

// WeekLabel renders "Jan 6-12", "Jan 27-Feb 2", or with ", 2024" appended
// when the week starts outside now's year.
func WeekLabel(start, now time.Time) string {
	end := start.AddDate(0, 0, 6)
	var b strings.Builder
	b.WriteString(monthDay(start))
	b.WriteByte('-')
	if end.Month() == start.Month() {
		b.WriteString(end.Format("2"))
	} else {
		b.WriteString(monthDay(end))
	}
	if start.Year() != now.Year() {
		fmt.Fprintf(&b, ", %d", start.Year())
	}
	return b.String()
}

// MonthLabel renders "Jan", or "Jan 2024" outside now's year.
func MonthLabel(start, now time.Time) string {
	if start.Year() != now.Year() {
		return start.Format("Jan 2006")
	}
	return start.Format("Jan")
}

// Package chart renders bucket rows and geo sets as charts. Bar draws a
// stacked horizontal bar per period in the terminal; Buckets and Heat write
// standalone HTML pages with go-echarts.
package chart

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/challan/internal/model"
)

// Glyphs for the stacked terminal bar.
const (
	glyphApproved = "█"
	glyphRejected = "▓"
	glyphReview   = "░"
)

// BarOptions controls terminal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars keeps only the last N periods. If 0, no limit is applied.
	MaxBars int
}

// Bar renders one stacked bar per row: approved, rejected, then reports
// still to be reviewed. Bars are scaled to the largest report count.
//
//	Weekly reports
//	Jan 6-12     12  ██████▓▓░░░░
//	Jan 13-19     5  ██░░░
func Bar(w io.Writer, title string, rows []model.BucketRow, opts BarOptions) error {
	if len(rows) == 0 {
		return fmt.Errorf("chart bar: no rows to render")
	}
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}
	if opts.MaxBars > 0 && len(rows) > opts.MaxBars {
		rows = rows[len(rows)-opts.MaxBars:]
	}

	labelWidth, valWidth, maxVal := 0, 0, 0
	for _, r := range rows {
		if l := len([]rune(r.Label)); l > labelWidth {
			labelWidth = l
		}
		if l := len(strconv.Itoa(r.Reports)); l > valWidth {
			valWidth = l
		}
		if r.Reports > maxVal {
			maxVal = r.Reports
		}
	}

	barAreaWidth := totalWidth - labelWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}

	if title != "" {
		fmt.Fprintln(w, title)
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %*d  %s\n",
			labelWidth, r.Label,
			valWidth, r.Reports,
			stacked(r, maxVal, barAreaWidth),
		)
	}
	fmt.Fprintf(w, "%s approved  %s rejected  %s to review\n", glyphApproved, glyphRejected, glyphReview)
	return nil
}

// stacked scales each status segment to width. A row with reports always
// shows at least one block.
func stacked(r model.BucketRow, maxVal, width int) string {
	if maxVal == 0 || r.Reports == 0 {
		return ""
	}
	scale := func(n int) int { return n * width / maxVal }
	total := scale(r.Reports)
	if total < 1 {
		total = 1
	}
	approved := scale(r.Approved)
	rejected := scale(r.Rejected)
	if approved+rejected > total {
		rejected = total - approved
		if rejected < 0 {
			approved, rejected = total, 0
		}
	}
	review := total - approved - rejected
	return strings.Repeat(glyphApproved, approved) +
		strings.Repeat(glyphRejected, rejected) +
		strings.Repeat(glyphReview, review)
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}

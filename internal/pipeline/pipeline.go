// Package pipeline reads and writes the JSONL streams that connect challan
// commands over stdin/stdout: raw API records on the way in, bucket rows on
// the way out.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/util"
)

const maxLine = 1024 * 1024

// ReadRecords reads raw records from r. Each non-blank line must be a JSON
// object or an array of objects; lines starting with // are comments.
func ReadRecords(r io.Reader) ([]model.RawRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxLine), maxLine)

	var recs []model.RawRecord
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			var batch []model.RawRecord
			if err := json.Unmarshal([]byte(line), &batch); err != nil {
				return nil, fmt.Errorf("line %d: invalid JSON array: %w", lineNum, err)
			}
			recs = append(recs, batch...)
			continue
		}
		var rec model.RawRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("line %d: expected a JSON object", lineNum)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no records read from input (is stdin empty?)")
	}
	return recs, nil
}

// WriteRecords writes raw records as JSONL.
func WriteRecords(w io.Writer, recs []model.RawRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// ─── Bucket rows ──────────────────────────────────────────────────────────────

type rowLine struct {
	Label        string `json:"label"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Reports      int    `json:"reports"`
	Approved     int    `json:"approved"`
	Rejected     int    `json:"rejected"`
	Pending      int    `json:"pending"`
	ToBeReviewed int    `json:"to_be_reviewed"`
}

// WriteRows writes bucket rows as JSONL with calendar-date bounds.
func WriteRows(w io.Writer, rows []model.BucketRow) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		line := rowLine{
			Label:        r.Label,
			Start:        util.FormatDate(r.StartOfPeriod),
			End:          util.FormatDate(r.EndOfPeriod),
			Reports:      r.Reports,
			Approved:     r.Approved,
			Rejected:     r.Rejected,
			Pending:      r.Pending,
			ToBeReviewed: r.ToBeReviewed,
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

// ReadRows reads rows written by WriteRows. End is restored to the last
// instant of its date.
func ReadRows(r io.Reader) ([]model.BucketRow, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxLine), maxLine)

	var rows []model.BucketRow
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rl rowLine
		if err := json.Unmarshal([]byte(line), &rl); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		start, err := util.ParseDate(rl.Start)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid start %q", lineNum, rl.Start)
		}
		end, err := util.ParseDate(rl.End)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid end %q", lineNum, rl.End)
		}
		rows = append(rows, model.BucketRow{
			Label:         rl.Label,
			StartOfPeriod: start,
			EndOfPeriod:   util.EndOfDay(end),
			Reports:       rl.Reports,
			Approved:      rl.Approved,
			Rejected:      rl.Rejected,
			Pending:       rl.Pending,
			ToBeReviewed:  rl.ToBeReviewed,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows read from input (is stdin empty?)")
	}
	return rows, nil
}

// IsTTY returns true if stdin is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

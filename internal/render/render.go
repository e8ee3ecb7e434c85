// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/pipeline"
	"github.com/derickschaefer/challan/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL emits one line per element for list payloads and a single
// line otherwise. Bucket rows use the pipeline row shape so they can be
// piped into chart commands.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	var items []interface{}
	switch d := result.Data.(type) {
	case []model.BucketRow:
		return pipeline.WriteRows(w, d)
	case []model.RangeView:
		for _, r := range d {
			items = append(items, r)
		}
	case []model.TokenWindow:
		for _, r := range d {
			items = append(items, r)
		}
	case []model.HeatPoint:
		for _, r := range d {
			items = append(items, r)
		}
	case model.GeoSet:
		for _, p := range d.Points {
			items = append(items, p)
		}
		for _, h := range d.Hotspots {
			items = append(items, h)
		}
	default:
		return enc.Encode(result.Data)
	}
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

// ─── Tabulation ───────────────────────────────────────────────────────────────

// tabulate flattens a result into headers and string rows shared by the
// table, delimited and markdown renderers. ok is false for payloads with no
// tabular form.
func tabulate(result *model.Result) (headers []string, rows [][]string, ok bool) {
	switch d := result.Data.(type) {
	case []model.BucketRow:
		headers = []string{"PERIOD", "START", "END", "REPORTS", "APPROVED", "REJECTED", "PENDING", "TO REVIEW"}
		for _, r := range d {
			rows = append(rows, []string{
				r.Label,
				util.FormatDate(r.StartOfPeriod),
				util.FormatDate(r.EndOfPeriod),
				itoa(r.Reports), itoa(r.Approved), itoa(r.Rejected), itoa(r.Pending), itoa(r.ToBeReviewed),
			})
		}
	case []model.TokenWindow:
		headers = []string{"TOKEN", "START", "END"}
		for _, tw := range d {
			rows = append(rows, []string{tw.Token, stamp(tw.Start), stamp(tw.End)})
		}
	case []model.RangeView:
		headers = []string{"SCOPE", "SOURCE", "KIND", "TOKEN", "START", "END", "READY"}
		for _, v := range d {
			rows = append(rows, []string{
				v.Scope, v.Source, string(v.Kind), v.Token,
				stamp(v.Start), stamp(v.End), strconv.FormatBool(v.Ready),
			})
		}
	case model.GeoSet:
		headers = []string{"TYPE", "LAT", "LNG", "COUNT", "ADDRESS", "DISTRICT", "DETAIL"}
		for _, h := range d.Hotspots {
			rows = append(rows, []string{
				"hotspot", coord(h.Latitude), coord(h.Longitude), itoa(h.ViolationCount),
				h.Address, h.District,
				fmt.Sprintf("A%d R%d P%d", h.StatusCounts.Approved, h.StatusCounts.Rejected, h.StatusCounts.Pending),
			})
		}
		for _, p := range d.Points {
			rows = append(rows, []string{
				"point", coord(p.Latitude), coord(p.Longitude), itoa(p.Count),
				p.Address, p.District, strings.TrimSpace(p.Status + " " + p.ViolationType),
			})
		}
	case []model.HeatPoint:
		headers = []string{"LAT", "LNG", "WEIGHT"}
		for _, p := range d {
			rows = append(rows, []string{coord(p.Lat), coord(p.Lng), util.FormatFloat(p.Weight)})
		}
	case model.Intensity:
		headers = []string{"FIELD", "VALUE"}
		rows = [][]string{
			{"Max observed", util.FormatFloat(d.MaxObserved)},
			{"Zoom", util.FormatFloat(d.Zoom)},
			{"Has data", strconv.FormatBool(d.HasData)},
			{"Max intensity", util.FormatFloat(d.Max)},
		}
	case *model.Table:
		headers, rows = d.Headers, d.Rows
	case model.Table:
		headers, rows = d.Headers, d.Rows
	default:
		return nil, nil, false
	}
	return headers, rows, true
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	headers, rows, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return nil
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	tw.SetColWidth(50)
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	headers, rows, ok := tabulate(result)
	if ok {
		lower := make([]string, len(headers))
		for i, h := range headers {
			lower[i] = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
		_ = cw.Write(lower)
		for _, r := range rows {
			_ = cw.Write(r)
		}
	} else {
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	headers, rows, ok := tabulate(result)
	if !ok {
		return renderJSON(w, result)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(headers, " | "))
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "----"
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(seps, "|"))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = mdEscape(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings, and stats when verbose mode is on, to w.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "live"
		if result.Stats.CacheHit {
			src = "store"
		}
		fmt.Fprintf(w, "\n[%s • %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func itoa(n int) string { return strconv.Itoa(n) }

func coord(f float64) string { return util.FormatFloat(f) }

// stamp renders a window bound; midnight bounds show as a bare date.
func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return util.FormatDate(t)
	}
	return t.Format("2006-01-02 15:04:05")
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/app"
	"github.com/derickschaefer/challan/internal/dashboard"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/pipeline"
	"github.com/derickschaefer/challan/internal/render"
	"github.com/derickschaefer/challan/internal/timerange"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns def, or a file created at --out when set. The
// returned close function is always safe to call.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result in the configured format to stdout or --out, then
// prints warnings and stats to stderr.
func emit(cmd *cobra.Command, deps *app.Deps, result *model.Result) error {
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := render.Render(w, result, resolveFormat(deps.Config.Format)); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if !deps.Config.Quiet {
		render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
	}
	return nil
}

// newResult wraps data in a Result envelope timed from start.
func newResult(kind, command string, data interface{}, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// openInput opens path, or stdin when path is empty or "-". Reading from an
// interactive terminal is refused so commands never hang waiting for input.
func openInput(path string) (io.ReadCloser, error) {
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		return f, nil
	}
	if pipeline.IsTTY() {
		return nil, errors.New("no input: pipe JSONL into stdin or pass --file")
	}
	return io.NopCloser(os.Stdin), nil
}

// readRecords reads raw JSONL records from path or stdin.
func readRecords(path string) ([]model.RawRecord, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return pipeline.ReadRecords(in)
}

// ─── Range flags ──────────────────────────────────────────────────────────────

// rangeFlags is the --range/--start/--end/--apply set shared by commands
// that accept a time range.
type rangeFlags struct {
	Range   string
	Start   string
	End     string
	Applied bool
}

func (r *rangeFlags) register(cmd *cobra.Command, prefix, what string) {
	f := cmd.Flags()
	f.StringVar(&r.Range, prefix+"range", "", what+" relative range token: "+strings.Join(timerange.Tokens, "|"))
	f.StringVar(&r.Start, prefix+"start", "", what+" absolute start date (YYYY-MM-DD)")
	f.StringVar(&r.End, prefix+"end", "", what+" absolute end date (YYYY-MM-DD)")
}

func (r rangeFlags) isSet() bool {
	return r.Range != "" || r.Start != "" || r.End != ""
}

func (r rangeFlags) rangeSpec() dashboard.RangeSpec {
	return dashboard.RangeSpec{Range: r.Range, Start: r.Start, End: r.End, Applied: r.Applied}
}

// ─── Tables ───────────────────────────────────────────────────────────────────

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// printKVTable renders a two-column key/value listing with aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

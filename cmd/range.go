package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/app"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/timerange"
)

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Resolve relative tokens and effective chart ranges",
	Long: `Inspect how time ranges resolve.

Relative tokens: 1d, 7d, 30d, 90d, 1y, ytd, mtd. Unknown tokens fall back
to 30d. Absolute ranges cover the start date's midnight through the last
instant of the end date.

A chart uses its local range only while it is applied; otherwise the
dashboard-wide global range wins.`,
}

// ─── range resolve ────────────────────────────────────────────────────────────

var rangeResolveAt string

var rangeResolveCmd = &cobra.Command{
	Use:   "resolve [TOKEN...]",
	Short: "Resolve relative tokens to concrete windows",
	Example: `  challan range resolve
  challan range resolve 7d ytd
  challan range resolve 90d --at 2025-03-31 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()
		now, err := resolveNow(deps, rangeResolveAt)
		if err != nil {
			return err
		}

		tokens := args
		if len(tokens) == 0 {
			tokens = timerange.Tokens
		}
		windows := make([]model.TokenWindow, 0, len(tokens))
		var warnings []string
		for _, tok := range tokens {
			norm := timerange.NormalizeToken(tok)
			if !timerange.IsKnownToken(tok) {
				warnings = append(warnings, fmt.Sprintf("unknown token %q resolved as %s", tok, norm))
			}
			w := timerange.Resolve(tok, now)
			windows = append(windows, model.TokenWindow{Token: norm, Start: w.Start, End: w.End})
		}

		result := newResult(model.KindWindow, "range resolve "+strings.Join(tokens, " "), windows, len(windows), start)
		result.Warnings = warnings
		return emit(cmd, deps, result)
	},
}

// ─── range effective ──────────────────────────────────────────────────────────

var (
	rangeEffGlobal rangeFlags
	rangeEffLocal  rangeFlags
	rangeEffAt     string
)

var rangeEffectiveCmd = &cobra.Command{
	Use:   "effective [SCOPE...]",
	Short: "Show the range each chart scope will fetch",
	Long: `Show the effective range per chart scope.

Scopes and their local ranges come from the dashboard layout (--dashboard or
CHALLAN_DASHBOARD). --global-* flags replace the layout's global range; the
local --range/--start/--end flags set the local range of the named scopes,
and --apply marks it applied.

Absolute ranges missing a date, or with start after end, are reported as
not ready.`,
	Example: `  challan range effective --dashboard dashboard.yaml
  challan range effective weekly --global-range 90d --range 7d --apply
  challan range effective map --start 2025-01-01 --end 2025-01-31 --apply`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		start := time.Now()
		now, err := resolveNow(deps, rangeEffAt)
		if err != nil {
			return err
		}

		board, scopes, err := loadBoard(deps)
		if err != nil {
			return err
		}
		if rangeEffGlobal.isSet() {
			g, err := rangeEffGlobal.rangeSpec().State()
			if err != nil {
				return fmt.Errorf("global range: %w", err)
			}
			board.SetGlobal(g)
		}
		if len(args) > 0 {
			scopes = args
		}
		if rangeEffLocal.isSet() || rangeEffLocal.Applied {
			if len(args) == 0 {
				return fmt.Errorf("local range flags need at least one SCOPE argument")
			}
			local, err := rangeEffLocal.rangeSpec().State()
			if err != nil {
				return fmt.Errorf("local range: %w", err)
			}
			for _, s := range args {
				board.SetLocal(s, local)
			}
		}
		if len(scopes) == 0 {
			scopes = []string{"default"}
		}

		views := make([]model.RangeView, 0, len(scopes))
		var warnings []string
		for _, s := range scopes {
			v := board.View(s, now)
			if !v.Ready {
				warnings = append(warnings, fmt.Sprintf("%s: absolute range incomplete or reversed; nothing will be fetched", s))
			}
			views = append(views, v)
		}

		result := newResult(model.KindRange, "range effective", views, len(views), start)
		result.Warnings = warnings
		return emit(cmd, deps, result)
	},
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// resolveNow returns the clock's now, or the --at date at local midnight.
func resolveNow(deps *app.Deps, at string) (time.Time, error) {
	if at == "" {
		return deps.Clock.Now(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", at, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: invalid date %q, expected YYYY-MM-DD", at)
	}
	return t, nil
}

// loadBoard builds the range board from the dashboard layout, or from the
// configured default range when no layout is set. scopes lists the layout's
// scope ids in file order.
func loadBoard(deps *app.Deps) (*timerange.Board, []string, error) {
	layout, ok, err := deps.Dashboard()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return timerange.NewBoard(timerange.Relative(deps.Config.DefaultRange, false)), nil, nil
	}
	scopes := make([]string, 0, len(layout.Scopes))
	for _, s := range layout.Scopes {
		scopes = append(scopes, s.ID)
	}
	return layout.Board(), scopes, nil
}

func init() {
	rootCmd.AddCommand(rangeCmd)
	rangeCmd.AddCommand(rangeResolveCmd)
	rangeCmd.AddCommand(rangeEffectiveCmd)

	rangeResolveCmd.Flags().StringVar(&rangeResolveAt, "at", "", "resolve as of this date (YYYY-MM-DD, default: now)")

	rangeEffGlobal.register(rangeEffectiveCmd, "global-", "global")
	rangeEffLocal.register(rangeEffectiveCmd, "", "local")
	rangeEffectiveCmd.Flags().BoolVar(&rangeEffLocal.Applied, "apply", false, "mark the local range applied")
	rangeEffectiveCmd.Flags().StringVar(&rangeEffAt, "at", "", "evaluate as of this date (YYYY-MM-DD, default: now)")
}

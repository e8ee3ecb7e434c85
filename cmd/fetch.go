package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/challan/internal/app"
	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/dashboard"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/store"
	"github.com/derickschaefer/challan/internal/timerange"
	"github.com/derickschaefer/challan/internal/util"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [SCOPE...]",
	Short: "Fetch each chart scope's effective range into the local database",
	Long: `Fetches report counts (buckets scopes) or geo stats (heat scopes) for the
effective range of every dashboard scope and stores them locally.

Scopes come from the dashboard layout; name scopes as arguments to fetch
only those. Without a layout a single ad-hoc scope is fetched using --kind,
--granularity and the range flags.

A scope whose effective range is an incomplete absolute range is skipped.
A scope whose range is already stored is not fetched again unless --refresh
is given. A stored relative range counts only while its window still falls
on the same calendar days. With --watch the layout is re-read on every tick
and only scopes whose effective range changed are fetched.`,
	Example: `  challan fetch --dashboard dashboard.yaml
  challan fetch weekly-reports --refresh
  challan fetch --kind geo --range 7d hotspots
  challan fetch --dashboard dashboard.yaml --watch 1m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.Config.Validate(); err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		var tracker timerange.Tracker
		start := time.Now()
		table, err := fetchOnce(cmd.Context(), deps, args, &tracker, deps.Config.Refresh)
		if table != nil {
			result := newResult(model.KindTable, "fetch", *table, len(table.Rows), start)
			if rerr := emit(cmd, deps, result); rerr != nil {
				return rerr
			}
		}
		if fetchWatch <= 0 {
			return err
		}
		if err != nil {
			slog.Warn("fetch: errors in first pass", "error", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ticker := time.NewTicker(fetchWatch)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			table, err := fetchOnce(ctx, deps, args, &tracker, false)
			if err != nil {
				slog.Warn("fetch: watch pass failed", "error", err)
			}
			if table == nil {
				continue
			}
			for _, row := range table.Rows {
				if row[len(row)-1] == statusFetched {
					slog.Info("fetch: range changed", "scope", row[0], "range", row[2])
				}
			}
		}
	},
}

var (
	fetchKind        string
	fetchGranularity string
	fetchRange       rangeFlags
	fetchWatch       time.Duration
)

// Fetch outcomes per scope.
const (
	statusFetched   = "fetched"
	statusStored    = "stored"
	statusUnchanged = "unchanged"
	statusNotReady  = "not ready"
	statusError     = "error"
)

// fetchTarget is one scope to fetch.
type fetchTarget struct {
	Scope       string
	Kind        string // model.KindBuckets or model.KindGeo
	Granularity bucket.Granularity
	State       model.TimeRangeState
}

// planFetch resolves the scopes to fetch and their effective states.
func planFetch(deps *app.Deps, args []string) ([]fetchTarget, error) {
	layout, ok, err := deps.Dashboard()
	if err != nil {
		return nil, err
	}
	if !ok {
		return adHocTarget(deps, args)
	}

	board := layout.Board()
	want := make(map[string]bool, len(args))
	for _, a := range args {
		if _, found := layout.Scope(a); !found {
			return nil, fmt.Errorf("scope %q is not in the dashboard layout", a)
		}
		want[a] = true
	}
	var targets []fetchTarget
	for _, s := range layout.Scopes {
		if len(want) > 0 && !want[s.ID] {
			continue
		}
		t := fetchTarget{Scope: s.ID, Kind: model.KindGeo, State: board.Effective(s.ID)}
		if s.Kind == dashboard.KindBuckets {
			t.Kind = model.KindBuckets
			if t.Granularity, err = s.Bucketing(); err != nil {
				return nil, fmt.Errorf("scope %s: %w", s.ID, err)
			}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func adHocTarget(deps *app.Deps, args []string) ([]fetchTarget, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("without a dashboard layout fetch takes at most one SCOPE")
	}
	scope := "default"
	if len(args) == 1 {
		scope = args[0]
	}
	t := fetchTarget{Scope: scope}
	switch fetchKind {
	case model.KindBuckets:
		t.Kind = model.KindBuckets
		g, err := bucket.ParseGranularity(fetchGranularity)
		if err != nil {
			return nil, err
		}
		t.Granularity = g
	case model.KindGeo:
		t.Kind = model.KindGeo
	default:
		return nil, fmt.Errorf("unknown --kind %q (use buckets or geo)", fetchKind)
	}

	board := timerange.NewBoard(timerange.Relative(deps.Config.DefaultRange, false))
	if fetchRange.isSet() {
		rs := fetchRange.rangeSpec()
		rs.Applied = true
		local, err := rs.State()
		if err != nil {
			return nil, fmt.Errorf("range: %w", err)
		}
		board.SetLocal(scope, local)
	}
	t.State = board.Effective(scope)
	return []fetchTarget{t}, nil
}

// fetchOnce runs one pass over the planned scopes. The returned table has
// one row per scope; the error joins every failed fetch.
func fetchOnce(ctx context.Context, deps *app.Deps, args []string, tracker *timerange.Tracker, refresh bool) (*model.Table, error) {
	targets, err := planFetch(deps, args)
	if err != nil {
		return nil, err
	}
	now := deps.Clock.Now()

	type outcome struct {
		status string
		items  int
		err    error
	}
	outcomes := make([]outcome, len(targets))
	params := make([]timerange.Params, len(targets))

	concurrency := deps.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, t := range targets {
		p, ready := timerange.ParamsFor(t.State, now)
		params[i] = p
		if !ready {
			outcomes[i] = outcome{status: statusNotReady}
			continue
		}
		if !tracker.NeedsFetch(t.Scope, t.State) && !refresh {
			outcomes[i] = outcome{status: statusUnchanged}
			continue
		}
		if !refresh {
			b, found, err := deps.Store.GetBatch(t.Kind, t.Scope, timerange.Key(t.State))
			if err == nil && found && timerange.Current(t.State, b.Window, now) {
				outcomes[i] = outcome{status: statusStored, items: b.Size()}
				continue
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := fetchTargetBatch(ctx, deps, t, params[i])
			if err != nil {
				outcomes[i] = outcome{status: statusError, err: err}
				return
			}
			outcomes[i] = outcome{status: statusFetched, items: n}
		}()
	}
	wg.Wait()

	table := &model.Table{Headers: []string{"SCOPE", "KIND", "RANGE", "START", "END", "ITEMS", "STATUS"}}
	var errs util.MultiError
	for i, t := range targets {
		o := outcomes[i]
		if o.err != nil {
			tracker.Forget(t.Scope)
			errs.Add(fmt.Errorf("%s: %w", t.Scope, o.err))
		}
		rangeLabel := params[i].Token
		if t.State.Kind == model.RangeAbsolute {
			rangeLabel = string(model.RangeAbsolute)
		}
		startCol, endCol := "", ""
		if o.status != statusNotReady {
			startCol = util.FormatDate(params[i].Window.Start)
			endCol = util.FormatDate(params[i].Window.End)
		}
		table.Rows = append(table.Rows, []string{
			t.Scope, t.Kind, rangeLabel, startCol, endCol, fmt.Sprintf("%d", o.items), o.status,
		})
	}
	return table, errs.Err()
}

// fetchTargetBatch fetches one scope and stores the batch, returning the
// number of raw items stored.
func fetchTargetBatch(ctx context.Context, deps *app.Deps, t fetchTarget, p timerange.Params) (int, error) {
	b := store.Batch{
		Scope:       t.Scope,
		Key:         timerange.Key(t.State),
		Kind:        t.Kind,
		Granularity: string(t.Granularity),
		Window:      p.Window,
	}
	switch t.Kind {
	case model.KindBuckets:
		recs, err := deps.Client.GetReportStats(ctx, p, t.Granularity)
		if err != nil {
			return 0, err
		}
		b.Records = recs
	default:
		stats, err := deps.Client.GetGeoStats(ctx, p)
		if err != nil {
			return 0, err
		}
		b.GeoStats = stats
	}
	stored, err := deps.Store.PutBatch(b)
	if err != nil {
		return 0, fmt.Errorf("storing batch: %w", err)
	}
	slog.Info("fetch: stored batch", "scope", t.Scope, "kind", t.Kind, "id", stored.ID, "items", stored.Size())
	return stored.Size(), nil
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchKind, "kind", model.KindBuckets, "ad-hoc scope kind: buckets|geo")
	fetchCmd.Flags().StringVar(&fetchGranularity, "granularity", string(bucket.Week), "ad-hoc buckets granularity: day|week|month")
	fetchRange.register(fetchCmd, "", "ad-hoc")
	fetchCmd.Flags().DurationVar(&fetchWatch, "watch", 0, "keep running and refetch changed scopes at this interval")
}

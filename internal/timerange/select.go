package timerange

import (
	"time"

	"github.com/derickschaefer/challan/internal/model"
)

// Select returns local iff local.IsApplied, otherwise global. Fields are never
// merged between the two.
func Select(global, local model.TimeRangeState) model.TimeRangeState {
	if local.IsApplied {
		return local
	}
	return global
}

// ─── Board ────────────────────────────────────────────────────────────────────

// Board holds the global range and one local range per chart scope. Each
// chart is addressed by its scope id instead of owning a private copy of the
// selection logic.
type Board struct {
	global model.TimeRangeState
	locals map[string]model.TimeRangeState
}

// NewBoard creates a Board with the given global state.
func NewBoard(global model.TimeRangeState) *Board {
	return &Board{global: global, locals: make(map[string]model.TimeRangeState)}
}

// Global returns the dashboard-wide state.
func (b *Board) Global() model.TimeRangeState { return b.global }

// SetGlobal replaces the dashboard-wide state.
func (b *Board) SetGlobal(s model.TimeRangeState) { b.global = s }

// Local returns the scope's local state, or Default if none was set.
func (b *Board) Local(scope string) model.TimeRangeState {
	if s, ok := b.locals[scope]; ok {
		return s
	}
	return Default()
}

// SetLocal stores a local state for scope as given, applied or not.
func (b *Board) SetLocal(scope string, s model.TimeRangeState) {
	b.locals[scope] = s
}

// ApplyLocal marks the scope's local state applied. A not-ready absolute
// range is refused and false is returned.
func (b *Board) ApplyLocal(scope string) bool {
	s := b.Local(scope)
	if !Ready(s) {
		return false
	}
	s.IsApplied = true
	b.locals[scope] = s
	return true
}

// ResetLocal drops the override so the scope follows the global range again.
func (b *Board) ResetLocal(scope string) {
	s := b.Local(scope)
	s.IsApplied = false
	b.locals[scope] = s
}

// Effective is Select(Global, Local(scope)).
func (b *Board) Effective(scope string) model.TimeRangeState {
	return Select(b.global, b.Local(scope))
}

// ─── Tracker ──────────────────────────────────────────────────────────────────

// Tracker remembers the last memo key fetched per scope. It is owned by the
// caller that issues fetches; the zero value is ready to use.
type Tracker struct {
	last map[string]string
}

// NeedsFetch reports whether s differs from what was last fetched for scope
// and records s's key when it does. Not-ready states never need a fetch.
func (t *Tracker) NeedsFetch(scope string, s model.TimeRangeState) bool {
	if !Ready(s) {
		return false
	}
	if t.last == nil {
		t.last = make(map[string]string)
	}
	key := Key(s)
	if prev, ok := t.last[scope]; ok && prev == key {
		return false
	}
	t.last[scope] = key
	return true
}

// Forget clears the remembered key so the next NeedsFetch returns true.
func (t *Tracker) Forget(scope string) {
	delete(t.last, scope)
}

// ─── Filter ───────────────────────────────────────────────────────────────────

// Filter keeps records whose date lies within w (inclusive). Records without
// a parseable date pass through unfiltered and are counted in unparsed.
func Filter(records []model.DatedCountRecord, w model.Window) (kept []model.DatedCountRecord, unparsed int) {
	kept = make([]model.DatedCountRecord, 0, len(records))
	for _, r := range records {
		if !r.HasDate() {
			unparsed++
			kept = append(kept, r)
			continue
		}
		if r.Date.Before(w.Start) || r.Date.After(w.End) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, unparsed
}

// ─── Views ────────────────────────────────────────────────────────────────────

// View describes the effective range of scope at now.
func View(scope string, global, local model.TimeRangeState, now time.Time) model.RangeView {
	eff := Select(global, local)
	v := model.RangeView{
		Scope:  scope,
		Source: "global",
		Kind:   eff.Kind,
		Key:    Key(eff),
	}
	if local.IsApplied {
		v.Source = "local"
	}
	if eff.Kind != model.RangeAbsolute {
		v.Kind = model.RangeRelative
		v.Token = NormalizeToken(eff.RelativeToken)
	}
	if w, ok := WindowOf(eff, now); ok {
		v.Ready = true
		v.Start, v.End = w.Start, w.End
	}
	return v
}

// View describes the effective range of scope on the board.
func (b *Board) View(scope string, now time.Time) model.RangeView {
	return View(scope, b.global, b.Local(scope), now)
}

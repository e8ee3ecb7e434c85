// Package dashboard loads the YAML layout that names each chart scope on the
// analytics dashboard together with its default local range.
//
// Example:
//
//	name: Traffic reports
//	global:
//	  range: 30d
//	scopes:
//	  - id: weekly-reports
//	    title: Weekly reports
//	    kind: buckets
//	    granularity: week
//	    range: 90d
//	    applied: true
//	  - id: hotspots
//	    kind: heat
//	    zoom: 11
package dashboard

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/timerange"
	"github.com/derickschaefer/challan/internal/util"
)

// Scope kinds.
const (
	KindBuckets = "buckets"
	KindHeat    = "heat"
)

// RangeSpec is a range as written in the layout file or an API request.
// Start and End take precedence over Range when both are present.
type RangeSpec struct {
	Range   string `yaml:"range,omitempty" json:"range,omitempty"`
	Start   string `yaml:"start,omitempty" json:"start,omitempty"`
	End     string `yaml:"end,omitempty" json:"end,omitempty"`
	Applied bool   `yaml:"applied,omitempty" json:"applied,omitempty"`
}

// Scope is one chart on the dashboard.
type Scope struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title,omitempty"`
	Kind        string  `yaml:"kind"`
	Granularity string  `yaml:"granularity,omitempty"`
	Zoom        float64 `yaml:"zoom,omitempty"`
	RangeSpec   `yaml:",inline"`
}

// Layout is the parsed dashboard file.
type Layout struct {
	Name   string    `yaml:"name"`
	Global RangeSpec `yaml:"global"`
	Scopes []Scope   `yaml:"scopes"`
}

// Load reads and validates a layout file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dashboard %s: %w", path, err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", path, err)
	}
	return l, nil
}

// Parse decodes and validates layout YAML.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks scope ids, kinds, granularities and date strings.
func (l *Layout) Validate() error {
	var errs util.MultiError
	if _, err := l.Global.State(); err != nil {
		errs.Add(fmt.Errorf("global: %w", err))
	}
	seen := make(map[string]bool, len(l.Scopes))
	for i, s := range l.Scopes {
		if strings.TrimSpace(s.ID) == "" {
			errs.Add(fmt.Errorf("scope %d: id is required", i))
			continue
		}
		if seen[s.ID] {
			errs.Add(fmt.Errorf("scope %s: duplicate id", s.ID))
		}
		seen[s.ID] = true
		switch s.Kind {
		case KindBuckets:
			if _, err := s.Bucketing(); err != nil {
				errs.Add(fmt.Errorf("scope %s: %w", s.ID, err))
			}
		case KindHeat:
		default:
			errs.Add(fmt.Errorf("scope %s: unknown kind %q (use buckets or heat)", s.ID, s.Kind))
		}
		if _, err := s.State(); err != nil {
			errs.Add(fmt.Errorf("scope %s: %w", s.ID, err))
		}
	}
	return errs.Err()
}

// Scope looks up a scope by id.
func (l *Layout) Scope(id string) (Scope, bool) {
	for _, s := range l.Scopes {
		if s.ID == id {
			return s, true
		}
	}
	return Scope{}, false
}

// Board builds the range board for the layout. Scopes without a range keep
// the default local state.
func (l *Layout) Board() *timerange.Board {
	global, _ := l.Global.State()
	b := timerange.NewBoard(global)
	for _, s := range l.Scopes {
		if s.RangeSpec.isEmpty() {
			continue
		}
		st, err := s.State()
		if err != nil {
			continue
		}
		b.SetLocal(s.ID, st)
	}
	return b
}

// Bucketing returns the scope's granularity, defaulting to week.
func (s Scope) Bucketing() (bucket.Granularity, error) {
	if s.Granularity == "" {
		return bucket.Week, nil
	}
	return bucket.ParseGranularity(s.Granularity)
}

// State converts r into a TimeRangeState. An absolute range with only
// one date parses but is not ready.
func (r RangeSpec) State() (model.TimeRangeState, error) {
	if r.Start == "" && r.End == "" {
		return timerange.Relative(r.Range, r.Applied), nil
	}
	var start, end time.Time
	var err error
	if r.Start != "" {
		if start, err = util.ParseDate(r.Start); err != nil {
			return model.TimeRangeState{}, fmt.Errorf("start: %w", err)
		}
	}
	if r.End != "" {
		if end, err = util.ParseDate(r.End); err != nil {
			return model.TimeRangeState{}, fmt.Errorf("end: %w", err)
		}
	}
	return timerange.Absolute(start, end, r.Applied), nil
}

func (r RangeSpec) isEmpty() bool {
	return r.Range == "" && r.Start == "" && r.End == "" && !r.Applied
}

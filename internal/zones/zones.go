// Package zones holds the reconstructed per-zone controller state.
// A Store is confined to a single owner goroutine. Presentation
// surfaces work from copies handed out by Series and Snapshot and
// never touch a Store directly.
package zones

import (
	"sort"
	"time"

	"github.com/sweeney/zone-monitor/internal/parse"
)

// Point is one trace sample.
type Point struct {
	When time.Time
	PV   float64
}

// Snapshot is the latest-value view of a zone. Numeric fields are nil
// until first reported. Updates replace the pointers wholesale and
// never write through them, so copies may share the pointed-to values.
type Snapshot struct {
	PV         *float64
	SPAbs      *float64
	OutputPct  *float64
	Method     string
	Mode       string
	Autotune   bool
	AutotuneSP *float64
}

func emptySnapshot() Snapshot {
	return Snapshot{Method: parse.Placeholder, Mode: parse.Placeholder}
}

type state struct {
	series []Point
	snap   Snapshot
}

// Store is the keyed registry of zone states. Zones are created on
// first reference and never removed; clearing and resetting only empty
// them.
type Store struct {
	states  map[int]*state
	created func(zone int)
}

// New creates an empty Store.
func New() *Store {
	return &Store{states: map[int]*state{}}
}

// OnCreate registers a callback invoked exactly once per zone, at the
// moment the zone is first created. Register it before seeding.
func (s *Store) OnCreate(fn func(zone int)) {
	s.created = fn
}

// Seed creates the given zones up front so they are visible before any
// data arrives.
func (s *Store) Seed(zs ...int) {
	for _, z := range zs {
		s.ensure(z)
	}
}

func (s *Store) ensure(z int) *state {
	if st, ok := s.states[z]; ok {
		return st
	}
	st := &state{snap: emptySnapshot()}
	s.states[z] = st
	if s.created != nil {
		s.created(z)
	}
	return st
}

// ApplyTelemetry folds one sample into its zone, creating the zone if
// needed. A trace point is appended only when the sample carried both
// a timestamp and a finite reading. Snapshot fields are overwritten
// with whatever the sample reported, present or not, except the
// autotune setpoint, which keeps its last value until a new one
// arrives.
func (s *Store) ApplyTelemetry(m parse.Telemetry) {
	st := s.ensure(m.Zone)
	if m.HasTime && m.PV != nil {
		st.series = append(st.series, Point{When: m.When, PV: *m.PV})
	}
	st.snap.PV = m.PV
	st.snap.SPAbs = m.SPAbs
	st.snap.OutputPct = m.OutputPct
	st.snap.Method = m.Method
	st.snap.Mode = m.Mode
	st.snap.Autotune = m.Autotune
	if m.AutotuneSP != nil {
		st.snap.AutotuneSP = m.AutotuneSP
	}
}

// ApplyEvent folds one event into its zone, creating the zone if
// needed. Events never touch the trace; they update the autotune
// setpoint when they carry one.
func (s *Store) ApplyEvent(m parse.Event) {
	st := s.ensure(m.Zone)
	if m.AutotuneSP != nil {
		st.snap.AutotuneSP = m.AutotuneSP
	}
}

// ClearTrace empties a zone's trace without touching its snapshot.
// It reports whether the zone exists.
func (s *Store) ClearTrace(z int) bool {
	st, ok := s.states[z]
	if !ok {
		return false
	}
	st.series = nil
	return true
}

// ResetAll empties every known zone, trace and snapshot both. Zones
// stay registered and no creation callbacks fire.
func (s *Store) ResetAll() {
	for _, st := range s.states {
		st.series = nil
		st.snap = emptySnapshot()
	}
}

// Has reports whether a zone exists.
func (s *Store) Has(z int) bool {
	_, ok := s.states[z]
	return ok
}

// Len returns the number of known zones.
func (s *Store) Len() int {
	return len(s.states)
}

// Zones returns the known zone ids in ascending order.
func (s *Store) Zones() []int {
	zs := make([]int, 0, len(s.states))
	for z := range s.states {
		zs = append(zs, z)
	}
	sort.Ints(zs)
	return zs
}

// Series returns a copy of a zone's trace, nil for unknown zones.
func (s *Store) Series(z int) []Point {
	st, ok := s.states[z]
	if !ok {
		return nil
	}
	out := make([]Point, len(st.series))
	copy(out, st.series)
	return out
}

// SeriesLen returns the number of trace points, 0 for unknown zones.
func (s *Store) SeriesLen(z int) int {
	st, ok := s.states[z]
	if !ok {
		return 0
	}
	return len(st.series)
}

// Snapshot returns a copy of a zone's latest values.
func (s *Store) Snapshot(z int) (Snapshot, bool) {
	st, ok := s.states[z]
	if !ok {
		return Snapshot{}, false
	}
	return st.snap, true
}

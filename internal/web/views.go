package web

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/zone-monitor/internal/notify"
	"github.com/sweeney/zone-monitor/internal/zones"
)

// ZoneView is the presentation copy of one zone. Refresh runs on the
// poll loop goroutine and copies the zone's state out of the store;
// HTTP handlers only ever read the copy, so the store itself is never
// touched from a handler.
type ZoneView struct {
	zone  int
	store *zones.Store

	mu          sync.RWMutex
	series      []zones.Point
	snap        zones.Snapshot
	refreshedAt time.Time
}

// Zone returns the zone id this view presents.
func (v *ZoneView) Zone() int {
	return v.zone
}

// Refresh copies the zone's current series and snapshot out of the
// store. Must be called from the store's owner goroutine.
func (v *ZoneView) Refresh() {
	series := v.store.Series(v.zone)
	snap, _ := v.store.Snapshot(v.zone)

	v.mu.Lock()
	v.series = series
	v.snap = snap
	v.refreshedAt = time.Now()
	v.mu.Unlock()
}

// Series returns the copied trace. An empty trace is a normal state
// for a freshly seeded or cleared zone, not an error.
func (v *ZoneView) Series() []zones.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.series
}

// Snapshot returns the copied latest values.
func (v *ZoneView) Snapshot() zones.Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}

// Views is the registry of per-zone presentation views. Ensure is the
// store's zone-creation callback, so every zone the store discovers
// gets a view the moment it appears.
type Views struct {
	store *zones.Store

	mu    sync.RWMutex
	views map[int]*ZoneView
}

// NewViews creates an empty registry backed by store.
func NewViews(store *zones.Store) *Views {
	return &Views{store: store, views: map[int]*ZoneView{}}
}

// Ensure creates the view for a zone if it does not exist yet.
// Idempotent; safe to register as the store's OnCreate callback.
func (vs *Views) Ensure(zone int) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if _, ok := vs.views[zone]; ok {
		return
	}
	vs.views[zone] = &ZoneView{zone: zone, store: vs.store}
}

// Lookup resolves a zone to its view for change notification. The nil
// interface result for unknown zones tells the notifier to skip them.
func (vs *Views) Lookup(zone int) notify.View {
	v, ok := vs.Get(zone)
	if !ok {
		return nil
	}
	return v
}

// Get returns the view for a zone.
func (vs *Views) Get(zone int) (*ZoneView, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	v, ok := vs.views[zone]
	return v, ok
}

// Zones returns the registered zone ids in ascending order.
func (vs *Views) Zones() []int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	zs := make([]int, 0, len(vs.views))
	for z := range vs.views {
		zs = append(zs, z)
	}
	sort.Ints(zs)
	return zs
}

// Len returns the number of registered views.
func (vs *Views) Len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.views)
}

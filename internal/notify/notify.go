// Package notify fans zone change sets out to presentation views.
// It is stateless; a lookup function supplies the view for a zone so
// the notifier needs no registry of its own.
package notify

import "sort"

// View is a refreshable presentation handle for one zone.
type View interface {
	Refresh()
}

// Lookup resolves a zone id to its view. A nil result means the zone
// has no view yet and is skipped; a later notification will find it.
type Lookup func(zone int) View

// Notify refreshes the view of every touched zone, in ascending zone
// order so refreshes are deterministic.
func Notify(touched map[int]struct{}, lookup Lookup) {
	if len(touched) == 0 || lookup == nil {
		return
	}
	ids := make([]int, 0, len(touched))
	for z := range touched {
		ids = append(ids, z)
	}
	sort.Ints(ids)
	for _, z := range ids {
		if v := lookup(z); v != nil {
			v.Refresh()
		}
	}
}

// NotifyAll refreshes every listed zone, used after a full reload.
func NotifyAll(zs []int, lookup Lookup) {
	if lookup == nil {
		return
	}
	for _, z := range zs {
		if v := lookup(z); v != nil {
			v.Refresh()
		}
	}
}

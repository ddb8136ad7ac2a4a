package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/zone-monitor/internal/zones"
)

// ZoneListJSON is the body of /zones.json.
type ZoneListJSON struct {
	Zones []ZoneSummary `json:"zones"`
}

// ZoneSummary is one row of the zone list.
type ZoneSummary struct {
	Zone       int      `json:"zone"`
	Points     int      `json:"points"`
	PV         *float64 `json:"pv_c"`
	SPAbs      *float64 `json:"sp_abs_c"`
	Mode       string   `json:"mode"`
	LastSample string   `json:"last_sample,omitempty"`
}

// SeriesJSON is the body of /zones/{zone}/series.json. Points are in
// arrival order, matching the order the log reported them.
type SeriesJSON struct {
	Zone   int           `json:"zone"`
	Points []SeriesPoint `json:"points"`
}

// SeriesPoint is one trace sample.
type SeriesPoint struct {
	TS     string  `json:"ts"`
	EpochS float64 `json:"t_epoch_s"`
	PV     float64 `json:"pv_c"`
}

// SnapshotJSON is the body of /zones/{zone}/status.json. Readings that
// have never been reported serialize as null, matching the MQTT zone
// payload shape.
type SnapshotJSON struct {
	Zone       int      `json:"zone"`
	PV         *float64 `json:"pv_c"`
	SPAbs      *float64 `json:"sp_abs_c"`
	OutputPct  *float64 `json:"output_pct"`
	Method     string   `json:"method"`
	Mode       string   `json:"mode"`
	Autotune   bool     `json:"autotune"`
	AutotuneSP *float64 `json:"autotune_sp_c"`
	Points     int      `json:"points"`
}

func formatZoneList(views *Views) []byte {
	list := ZoneListJSON{Zones: []ZoneSummary{}}
	for _, z := range views.Zones() {
		v, ok := views.Get(z)
		if !ok {
			continue
		}
		series := v.Series()
		snap := v.Snapshot()
		sum := ZoneSummary{
			Zone:   z,
			Points: len(series),
			PV:     snap.PV,
			SPAbs:  snap.SPAbs,
			Mode:   snap.Mode,
		}
		if len(series) > 0 {
			sum.LastSample = series[len(series)-1].When.UTC().Format(time.RFC3339)
		}
		list.Zones = append(list.Zones, sum)
	}
	data, _ := json.MarshalIndent(list, "", "  ")
	return data
}

func formatSeries(zone int, series []zones.Point) []byte {
	sj := SeriesJSON{Zone: zone, Points: make([]SeriesPoint, 0, len(series))}
	for _, p := range series {
		sj.Points = append(sj.Points, SeriesPoint{
			TS:     p.When.UTC().Format(time.RFC3339Nano),
			EpochS: float64(p.When.UnixNano()) / 1e9,
			PV:     p.PV,
		})
	}
	data, _ := json.Marshal(sj)
	return data
}

func formatSnapshot(zone int, snap zones.Snapshot, points int) []byte {
	sj := SnapshotJSON{
		Zone:       zone,
		PV:         snap.PV,
		SPAbs:      snap.SPAbs,
		OutputPct:  snap.OutputPct,
		Method:     snap.Method,
		Mode:       snap.Mode,
		Autotune:   snap.Autotune,
		AutotuneSP: snap.AutotuneSP,
		Points:     points,
	}
	data, _ := json.MarshalIndent(sj, "", "  ")
	return data
}

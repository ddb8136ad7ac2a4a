// Package ingest drives log lines from a source into the zone store.
// An Ingestor is confined to the same goroutine as its store; ticks,
// loads, and source swaps all happen from that one owner.
package ingest

import (
	"fmt"
	"path/filepath"

	"github.com/sweeney/zone-monitor/internal/logfile"
	"github.com/sweeney/zone-monitor/internal/parse"
	"github.com/sweeney/zone-monitor/internal/zones"
)

// StatusFunc receives one-line operator-facing status messages.
type StatusFunc func(msg string)

// LoadStats counts what a full load accepted. Lines counts every
// successfully parsed record; Telemetry counts the telemetry subset.
type LoadStats struct {
	Lines     int
	Telemetry int
}

// Ingestor owns the read-parse-apply path for one log at a time.
type Ingestor struct {
	store  *zones.Store
	parser *parse.Parser
	status StatusFunc
	src    logfile.Source
	stats  LoadStats
}

// New creates an Ingestor over store. status may be nil.
func New(store *zones.Store, parser *parse.Parser, status StatusFunc) *Ingestor {
	return &Ingestor{store: store, parser: parser, status: status}
}

// LoadFile opens path, resets all zone state, and ingests the file's
// full history. On success the file stays attached, positioned at its
// end, and subsequent Ticks return only appended lines. If the open
// fails the previously attached source is left in place.
func (ing *Ingestor) LoadFile(path string) (LoadStats, error) {
	src, err := logfile.OpenFromStart(path)
	if err != nil {
		ing.report("Failed to open log: " + err.Error())
		return LoadStats{}, err
	}

	ing.Attach(src)
	ing.store.ResetAll()
	ing.stats = LoadStats{}

	lines, err := src.ReadNewLines()
	if err != nil {
		src.Close()
		ing.src = nil
		ing.report("Failed to read log: " + err.Error())
		return LoadStats{}, err
	}
	for _, line := range lines {
		_, telemetry, ok := ing.apply(line)
		if !ok {
			continue
		}
		ing.stats.Lines++
		if telemetry {
			ing.stats.Telemetry++
		}
	}

	ing.report(fmt.Sprintf("Opened: %s | lines=%d telemetry=%d",
		filepath.Base(path), ing.stats.Lines, ing.stats.Telemetry))
	return ing.stats, nil
}

// Tick drains newly appended lines from the attached source and folds
// them into the store. The returned set holds the zones whose state may
// have changed; lines that failed to decode contribute a guessed zone
// so a partially observed record still triggers a refresh attempt. A
// read failure has already been reported as a status message when Tick
// returns it; the source stays attached and the next Tick retries.
func (ing *Ingestor) Tick() (map[int]struct{}, error) {
	if ing.src == nil {
		return nil, nil
	}
	lines, err := ing.src.ReadNewLines()
	if err != nil {
		ing.report("Tail error: " + err.Error())
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	touched := make(map[int]struct{})
	for _, line := range lines {
		zone, _, ok := ing.apply(line)
		if !ok {
			if z, guessed := parse.GuessZone(line); guessed {
				touched[z] = struct{}{}
			}
			continue
		}
		touched[zone] = struct{}{}
	}
	return touched, nil
}

// Attach replaces the tailed source, closing any previous one.
func (ing *Ingestor) Attach(src logfile.Source) {
	if ing.src != nil {
		ing.src.Close()
	}
	ing.src = src
}

// Close releases the attached source, if any.
func (ing *Ingestor) Close() error {
	if ing.src == nil {
		return nil
	}
	err := ing.src.Close()
	ing.src = nil
	return err
}

// Stats returns the counters from the most recent LoadFile.
func (ing *Ingestor) Stats() LoadStats {
	return ing.stats
}

func (ing *Ingestor) apply(line string) (zone int, telemetry bool, ok bool) {
	msg, ok := ing.parser.Parse(line)
	if !ok {
		return 0, false, false
	}
	switch m := msg.(type) {
	case parse.Telemetry:
		ing.store.ApplyTelemetry(m)
		return m.Zone, true, true
	case parse.Event:
		ing.store.ApplyEvent(m)
		return m.Zone, false, true
	}
	return 0, false, false
}

func (ing *Ingestor) report(msg string) {
	if ing.status != nil {
		ing.status(msg)
	}
}

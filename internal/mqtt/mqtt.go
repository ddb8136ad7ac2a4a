// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/zone-monitor/internal/zones"
)

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "thermal/zone-monitor/system"

// TopicZone returns the status topic for one zone.
func TopicZone(zone int) string {
	return fmt.Sprintf("thermal/zone-monitor/zones/%d/status", zone)
}

// Publisher publishes zone state to MQTT.
type Publisher interface {
	// PublishZone sends one zone's latest state to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishZone(update ZoneUpdate) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ZoneUpdate carries one zone's state at publish time.
type ZoneUpdate struct {
	Zone      int
	Timestamp time.Time
	Snapshot  zones.Snapshot
	Points    int
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, log load).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string    // e.g., "STARTUP", "SHUTDOWN", "LOADED"
	Reason     string    // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Load       *LoadInfo // load details (LOADED only)
	RawPayload []byte    // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool      // Whether the message should be retained by the broker
}

// LoadInfo describes a completed full load for a LOADED system event.
type LoadInfo struct {
	Path      string
	Lines     int
	Telemetry int
	Zones     int
}

// ZonePayload is the MQTT message body for one zone's status.
// Readings that have never been reported serialize as null.
type ZonePayload struct {
	Zone       int      `json:"zone"`
	Timestamp  string   `json:"timestamp"`
	PV         *float64 `json:"pv_c"`
	SPAbs      *float64 `json:"sp_abs_c"`
	OutputPct  *float64 `json:"output_pct"`
	Method     string   `json:"method"`
	Mode       string   `json:"mode"`
	Autotune   bool     `json:"autotune"`
	AutotuneSP *float64 `json:"autotune_sp_c"`
	Points     int      `json:"points"`
}

// FormatZonePayload creates the JSON payload for a zone update.
func FormatZonePayload(update ZoneUpdate) ([]byte, error) {
	payload := ZonePayload{
		Zone:       update.Zone,
		Timestamp:  update.Timestamp.UTC().Format(time.RFC3339),
		PV:         update.Snapshot.PV,
		SPAbs:      update.Snapshot.SPAbs,
		OutputPct:  update.Snapshot.OutputPct,
		Method:     update.Snapshot.Method,
		Mode:       update.Snapshot.Mode,
		Autotune:   update.Snapshot.Autotune,
		AutotuneSP: update.Snapshot.AutotuneSP,
		Points:     update.Points,
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string    `json:"timestamp"`
	Event     string    `json:"event"`
	Reason    string    `json:"reason,omitempty"`
	Load      *LoadJSON `json:"load,omitempty"`
}

// LoadJSON is the JSON representation of LoadInfo.
type LoadJSON struct {
	Path      string `json:"path"`
	Lines     int    `json:"lines"`
	Telemetry int    `json:"telemetry"`
	Zones     int    `json:"zones"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Reason:    event.Reason,
	}
	if event.Load != nil {
		inner.Load = &LoadJSON{
			Path:      event.Load.Path,
			Lines:     event.Load.Lines,
			Telemetry: event.Load.Telemetry,
			Zones:     event.Load.Zones,
		}
	}
	return json.Marshal(SystemPayload{System: inner})
}

package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Log           string     `json:"log"`
	Loaded        bool       `json:"loaded"`
	Lines         int        `json:"lines"`
	Telemetry     int        `json:"telemetry"`
	Zones         int        `json:"zones"`
	Ticks         int        `json:"ticks"`
	TickErrors    int        `json:"tick_errors"`
	LastMessage   string     `json:"last_message,omitempty"`
	LastMessageAt string     `json:"last_message_at,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64  `json:"poll_ms"`
	LogDir       string `json:"log_dir"`
	DefaultZones []int  `json:"default_zones"`
	Timezone     string `json:"timezone,omitempty"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Log:           snap.LogPath,
		Loaded:        snap.Loaded,
		Lines:         snap.Lines,
		Telemetry:     snap.Telemetry,
		Zones:         snap.ZoneCount,
		Ticks:         snap.Ticks,
		TickErrors:    snap.TickErrors,
		LastMessage:   snap.LastMessage,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			LogDir:       snap.Config.LogDir,
			DefaultZones: snap.Config.DefaultZones,
			Timezone:     snap.Config.Timezone,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if !snap.LastMessageAt.IsZero() {
		inner.LastMessageAt = snap.LastMessageAt.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

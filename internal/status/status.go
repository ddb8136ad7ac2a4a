// Package status provides a thread-safe status tracker for the
// zone-monitor daemon. It is written from the poll loop and read by
// HTTP handlers.
package status

import (
	"sync"
	"time"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs       int64
	LogDir       string
	DefaultZones []int
	Timezone     string // empty = system local
	Broker       string // empty = MQTT disabled
	HTTPAddr     string // empty = HTTP disabled
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	LogPath       string
	Loaded        bool
	Lines         int
	Telemetry     int
	ZoneCount     int
	Ticks         int
	TickErrors    int
	LastMessage   string
	LastMessageAt time.Time
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetLog records a successful full load: the active log path and the
// counts it accepted.
func (t *Tracker) SetLog(path string, lines, telemetry int) {
	t.mu.Lock()
	t.snap.LogPath = path
	t.snap.Loaded = true
	t.snap.Lines = lines
	t.snap.Telemetry = telemetry
	t.mu.Unlock()
}

// SetMessage records the latest operator-facing status line.
func (t *Tracker) SetMessage(msg string) {
	t.mu.Lock()
	t.snap.LastMessage = msg
	t.snap.LastMessageAt = time.Now()
	t.mu.Unlock()
}

// TickOK counts a completed poll tick.
func (t *Tracker) TickOK() {
	t.mu.Lock()
	t.snap.Ticks++
	t.mu.Unlock()
}

// TickError counts a poll tick that failed to read the log.
func (t *Tracker) TickError() {
	t.mu.Lock()
	t.snap.Ticks++
	t.snap.TickErrors++
	t.mu.Unlock()
}

// SetZoneCount records the number of known zones.
func (t *Tracker) SetZoneCount(n int) {
	t.mu.Lock()
	t.snap.ZoneCount = n
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

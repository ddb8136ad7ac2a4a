// Package parse decodes CN616A controller log lines into typed messages.
// This package is pure: no I/O, no clocks, no shared state. Timestamp
// resolution uses the location the Parser was constructed with.
package parse

import "time"

// Placeholder is the display value for textual fields that have never
// been reported.
const Placeholder = "—"

// Message is a decoded log line: either a Telemetry sample or an Event.
type Message interface {
	isMessage()
}

// Telemetry is one periodic sample from a controller zone.
type Telemetry struct {
	Zone int
	// When is the resolved sample time, valid only if HasTime is set.
	// Samples without a usable timestamp still update the latest-value
	// snapshot but contribute no trace point.
	When    time.Time
	HasTime bool
	// Numeric readings are nil when the field was absent, null, or not
	// a finite number.
	PV        *float64
	SPAbs     *float64
	OutputPct *float64
	Method    string
	Mode      string
	Autotune  bool
	// AutotuneSP is the first finite value among the setpoint aliases,
	// nil when no alias carried one.
	AutotuneSP *float64
}

// Event is an aperiodic controller notification for a zone. Only the
// autotune setpoint is extracted; other payload fields are ignored.
type Event struct {
	Zone       int
	AutotuneSP *float64
}

func (Telemetry) isMessage() {}
func (Event) isMessage()     {}

package parse

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Autotune setpoint aliases, most specific first. The first key that is
// present with a finite numeric value wins; keys that are present but
// null or non-numeric do not stop the scan. Event records additionally
// accept the generic setpoint names.
var (
	telemetrySPAliases = []string{"autotune_sp_c", "autotune_setpoint_c", "autotune_setpoint"}
	eventSPAliases     = []string{"autotune_sp_c", "autotune_setpoint_c", "autotune_setpoint", "sp", "setpoint"}
)

// Parser turns raw log lines into Messages. The location applies to
// timestamps that carry no offset of their own (epoch seconds and naive
// ISO strings).
type Parser struct {
	loc *time.Location
}

// New creates a Parser that resolves timestamps in loc. A nil loc means
// the system local zone.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// Parse decodes a single log line. It returns ok=false for blank lines,
// invalid JSON, unknown record types, and records without a usable
// integer zone. A bad line never fails a batch; callers skip it and
// move on.
func (p *Parser) Parse(line string) (Message, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(sanitizeNonFinite(line)), &obj); err != nil {
		return nil, false
	}

	zone, ok := intField(obj, "zone")
	if !ok {
		return nil, false
	}

	switch obj["type"] {
	case "telemetry":
		return p.telemetry(zone, obj), true
	case "event":
		return event(zone, obj), true
	}
	return nil, false
}

func (p *Parser) telemetry(zone int, obj map[string]any) Telemetry {
	t := Telemetry{
		Zone:       zone,
		PV:         numField(obj, "pv_c"),
		SPAbs:      numField(obj, "sp_abs_c"),
		OutputPct:  numField(obj, "output_pct"),
		Method:     textField(obj, "method"),
		Mode:       textField(obj, "mode"),
		Autotune:   truthy(obj["autotune"]),
		AutotuneSP: firstAlias(obj, telemetrySPAliases),
	}
	t.When, t.HasTime = p.resolveTime(obj)
	return t
}

func event(zone int, obj map[string]any) Event {
	return Event{Zone: zone, AutotuneSP: firstAlias(obj, eventSPAliases)}
}

// resolveTime prefers epoch seconds over the ts string. A t_epoch_s that
// is present but unreadable means no timestamp at all; ts is consulted
// only when t_epoch_s is absent or null.
func (p *Parser) resolveTime(obj map[string]any) (time.Time, bool) {
	if v, present := obj["t_epoch_s"]; present && v != nil {
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, false
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).In(p.loc), true
	}
	s, ok := obj["ts"].(string)
	if !ok {
		return time.Time{}, false
	}
	return p.parseTS(s)
}

var tsLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTS accepts RFC 3339 strings and the naive ISO forms the logger
// writes when it has no offset; naive strings are interpreted in the
// Parser's location.
func (p *Parser) parseTS(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(p.loc), true
	}
	for _, layout := range tsLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// intField extracts an exact integer. JSON numbers decode as float64;
// fractional, non-finite, and out-of-range values are rejected.
func intField(obj map[string]any, key string) (int, bool) {
	f, ok := obj[key].(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// numField returns a finite numeric field, or nil when the key is
// absent, null, non-numeric, or non-finite.
func numField(obj map[string]any, key string) *float64 {
	f, ok := obj[key].(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// textField returns a string field, or the display placeholder when the
// key is absent or not a string.
func textField(obj map[string]any, key string) string {
	s, ok := obj[key].(string)
	if !ok {
		return Placeholder
	}
	return s
}

// truthy mirrors the loose truth test applied by the feed's producers:
// absent, null, and empty values are false, everything else is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// firstAlias scans keys in priority order and returns the first finite
// numeric value. Presence is checked per key, so an explicit 0 under a
// high-priority alias wins over any later alias.
func firstAlias(obj map[string]any, keys []string) *float64 {
	for _, key := range keys {
		v, present := obj[key]
		if !present {
			continue
		}
		if f, ok := v.(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return &f
		}
	}
	return nil
}

// toFloat reads a JSON number or a numeric string. Loggers occasionally
// quote epoch values; nothing else uses the string form.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Python's json.dumps emits bare NaN/Infinity tokens, which
// encoding/json rejects outright. Rewrite value-position tokens to null
// so the rest of the record survives.
var nonFiniteRE = regexp.MustCompile(`([:,\[]\s*)(?:-?Infinity|NaN)(\s*[,}\]])`)

func sanitizeNonFinite(line string) string {
	for strings.Contains(line, "NaN") || strings.Contains(line, "Infinity") {
		replaced := nonFiniteRE.ReplaceAllString(line, "${1}null${2}")
		if replaced == line {
			break
		}
		line = replaced
	}
	return line
}

// The telemetry marker gate keeps event and garbage lines from ever
// producing a zone guess.
var (
	telemetryMarkers = []string{`"type": "telemetry"`, `"type":"telemetry"`}
	zonePattern      = regexp.MustCompile(`"zone"\s*:\s*(\d+)`)
)

// GuessZone extracts a zone id from a line that failed full decoding,
// typically a partially written record at the tail of the file. Only
// lines that look like telemetry are scanned.
func GuessZone(line string) (int, bool) {
	marker := false
	for _, m := range telemetryMarkers {
		if strings.Contains(line, m) {
			marker = true
			break
		}
	}
	if !marker {
		return 0, false
	}
	m := zonePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	zone, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return zone, true
}

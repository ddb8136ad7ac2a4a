package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/zone-monitor/internal/parse"
	"github.com/sweeney/zone-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Zone Monitor</title>
<style>
body { font-family: monospace; max-width: 900px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.autotune { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.msg { color: #555; }
form.inline { display: inline; margin: 0; }
button { font-family: monospace; }
</style>
</head>
<body>
<h1>Zone Monitor</h1>

<h2>Log</h2>
<table>
<tr><th>File</th><td>{{if .Loaded}}{{.LogPath}}{{else}}none loaded{{end}}</td></tr>
<tr><th>Lines</th><td>{{.Lines}}</td></tr>
<tr><th>Telemetry</th><td>{{.Telemetry}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}{{if .TickErrors}} ({{.TickErrors}} errors){{end}}</td></tr>
{{if .LastMessage}}<tr><th>Status</th><td class="msg">{{.LastMessage}}</td></tr>{{end}}
</table>
<form method="post" action="/load">
<input type="text" name="path" size="60" placeholder="path to log file">
<button type="submit">Open log</button>
</form>

<h2>Zones</h2>
<table>
<tr><th>Zone</th><th>PV &deg;C</th><th>SP &deg;C</th><th>Out %</th><th>Method</th><th>Mode</th><th>Autotune</th><th>AT SP &deg;C</th><th>Points</th><th>Last sample</th><th></th></tr>
{{range .Zones}}<tr>
<td><a href="/zones/{{.Zone}}/series.json">{{.Zone}}</a></td>
<td>{{.PV}}</td>
<td>{{.SPAbs}}</td>
<td>{{.OutputPct}}</td>
<td>{{.Method}}</td>
<td>{{.Mode}}</td>
<td{{if .Autotune}} class="autotune"{{end}}>{{if .Autotune}}yes{{else}}no{{end}}</td>
<td>{{.AutotuneSP}}</td>
<td>{{.Points}}</td>
<td>{{.LastSample}}</td>
<td><form class="inline" method="post" action="/zones/{{.Zone}}/clear"><button type="submit">Clear plot</button></form></td>
</tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{else}}<tr><th>MQTT</th><td>disabled</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Log dir</th><td>{{.Config.LogDir}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/zones.json">Zones JSON</a></p>
</body>
</html>
`

// zoneRow is the display form of one zone for the index table. Numeric
// fields are preformatted strings so absent readings show the same
// placeholder the desktop feed uses.
type zoneRow struct {
	Zone       int
	PV         string
	SPAbs      string
	OutputPct  string
	Method     string
	Mode       string
	Autotune   bool
	AutotuneSP string
	Points     int
	LastSample string
}

// fmtReading renders a nullable reading to one decimal place.
func fmtReading(v *float64) string {
	if v == nil {
		return parse.Placeholder
	}
	return fmt.Sprintf("%.1f", *v)
}

func (s *Server) zoneRows() []zoneRow {
	zs := s.views.Zones()
	rows := make([]zoneRow, 0, len(zs))
	for _, z := range zs {
		v, ok := s.views.Get(z)
		if !ok {
			continue
		}
		series := v.Series()
		snap := v.Snapshot()
		row := zoneRow{
			Zone:       z,
			PV:         fmtReading(snap.PV),
			SPAbs:      fmtReading(snap.SPAbs),
			OutputPct:  fmtReading(snap.OutputPct),
			Method:     snap.Method,
			Mode:       snap.Mode,
			Autotune:   snap.Autotune,
			AutotuneSP: fmtReading(snap.AutotuneSP),
			Points:     len(series),
			LastSample: parse.Placeholder,
		}
		if len(series) > 0 {
			row.LastSample = series[len(series)-1].When.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, row)
	}
	return rows
}

func renderHTML(w io.Writer, snap status.Snapshot, rows []zoneRow) {
	// Snapshot has an Uptime() method but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Zones  []zoneRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Zones:    rows,
	}
	indexTmpl.Execute(w, data)
}

package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sensorcluster/internal/logic"
	"github.com/sweeney/sensorcluster/internal/status"
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
	"hex": func(c logic.RGB) string {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	},
	"celsius": logic.FormatCelsius,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Identity.Device}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 12px; height: 12px; border: 1px solid #888; vertical-align: middle; }
</style>
</head>
<body>
<h1>{{.Identity.Device}}</h1>

<h2>Sensors</h2>
<table>
<tr><th>Temperature</th><td id="temperature">{{if .Temperature.Valid}}{{celsius .Temperature.LastValid}} &deg;C{{else}}<span class="unknown">no reading</span>{{end}}</td></tr>
<tr><th>Presence</th><td id="presence" class="{{if .Presence.Level}}on{{else}}off{{end}}">{{if .Presence.Level}}detected{{else}}clear{{end}}</td></tr>
</table>

<h2>Outputs</h2>
<table>
<tr><th>Alert</th><td class="{{if .Alert.Active}}on{{else}}off{{end}}">{{if .Alert.Active}}{{.Alert.PulsesDone}}/{{.Alert.TotalPulses}} pulses{{else}}idle{{end}}</td></tr>
<tr><th>LED</th><td><span class="swatch" style="background: {{hex .Indicator.Color}}"></span> {{if .Indicator.Blinking}}blink {{.Indicator.On}}/{{.Indicator.Off}}ms{{if .Indicator.Count}} ({{.Indicator.CyclesDone}}/{{.Indicator.Count}}){{end}}{{else}}solid{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Client ID</th><td>{{.Identity.ClientID}}</td></tr>
<tr><th>Base topic</th><td>{{.Config.BaseTopic}}</td></tr>
<tr><th>IP</th><td>{{.Identity.IP}}</td></tr>
<tr><th>MAC</th><td>{{.Identity.MAC}}</td></tr>
</table>

<h2>Commands</h2>
<table>
<tr><th>Applied</th><td>{{.Commands.Applied}}</td></tr>
<tr><th>Rejected</th><td>{{.Commands.Rejected}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Loop</th><td>{{.Config.LoopMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{.Config.HeartbeatMs}}ms</td></tr>
<tr><th>Reconnect</th><td>{{.Config.ReconnectMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}

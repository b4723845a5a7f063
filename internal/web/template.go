package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/harvest-engine/internal/logic"
	"github.com/sweeney/harvest-engine/internal/status"
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
	"stateOrUnknown": func(s logic.State) string {
		if s == "" {
			return "UNKNOWN"
		}
		return string(s)
	},
	"stateClass": func(s logic.State) string {
		switch s {
		case logic.StateOn:
			return "on"
		case logic.StateOff:
			return "off"
		}
		return "unknown"
	},
	"channelName": logic.ChannelName,
	"hex": func(b uint8) string {
		return fmt.Sprintf("0x%02X", b)
	},
	"cm": func(d logic.DistanceEstimate, clockHz uint32) string {
		if !d.Valid || clockHz == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1f cm", d.Centimeters(clockHz))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Harvest Engine</title>
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
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Harvest Engine{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Alert</th><td id="alert-state" class="{{stateClass .Monitor.Alert}}">{{stateOrUnknown .Monitor.Alert}}</td></tr>
<tr><th>Harvest Prediction</th><td id="prediction-state" class="{{stateClass .Monitor.Prediction}}">{{stateOrUnknown .Monitor.Prediction}}</td></tr>
<tr><th>Mode</th><td id="mode-state">{{if .Monitor.Baselined}}{{.Monitor.Mode}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Monitor.Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Engine</h2>
<table>
<tr><th>Status Word</th><td>{{hex .Engine.Word.Byte}}</td></tr>
<tr><th>Settled</th><td>{{if .Engine.Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Severity</th><td>{{.Engine.Deviation.Severity}}</td></tr>
<tr><th>Capture</th><td>{{.Engine.Capture}}</td></tr>
<tr><th>Steps</th><td>{{.Engine.Steps}}</td></tr>
<tr><th>Frames</th><td>{{.Engine.Frames}}</td></tr>
</table>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><td>Baseline / Last</td></tr>
{{range .Engine.Channels}}<tr><th>{{.ID}} {{channelName .ID}}</th><td>{{if .BaselineSet}}{{.Baseline}}{{else}}learning ({{.SampleCount}}){{end}} / {{.LastReading}}</td></tr>
{{end}}</table>

<h2>Vision</h2>
<table>
<tr><th>Distance</th><td>{{if .Engine.Distance.Valid}}{{.Engine.Distance.Class}} ({{.Engine.Distance.PulseCycles}} cycles, {{cm .Engine.Distance .Config.ClockHz}}){{else}}none{{end}}</td></tr>
{{with .Engine.Classification}}{{if .Valid}}<tr><th>Harvest Ready</th><td>{{if .HarvestReady}}yes{{else}}no{{end}}</td></tr>
<tr><th>Hidden Bits</th><td>{{.HiddenBits}}</td></tr>
<tr><th>Avg Green</th><td>{{.Features.AvgGreen}}</td></tr>
<tr><th>Rows</th><td>{{.Features.RowCount}}</td></tr>{{else}}<tr><th>Last Frame</th><td>none</td></tr>{{end}}{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTT.Connected}}connected{{else}}disconnected{{end}}">{{if .MQTT.Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Outbox</th><td>{{.MQTT.Pending}} pending, {{.MQTT.Dropped}} dropped</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Alert ON</th><td>{{.Monitor.Counts.AlertOn}}</td></tr>
<tr><th>Alert OFF</th><td>{{.Monitor.Counts.AlertOff}}</td></tr>
<tr><th>Harvest Ready</th><td>{{.Monitor.Counts.HarvestReady}}</td></tr>
<tr><th>Harvest Cleared</th><td>{{.Monitor.Counts.HarvestCleared}}</td></tr>
<tr><th>Mode Vision</th><td>{{.Monitor.Counts.ModeVision}}</td></tr>
<tr><th>Mode Sensor</th><td>{{.Monitor.Counts.ModeSensor}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}{{if .Config.Scenario}} ({{.Config.Scenario}}){{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "agri/harvest-engine/events";
  var dot = document.getElementById("live-dot");
  var alertEl = document.getElementById("alert-state");
  var predEl = document.getElementById("prediction-state");
  var modeEl = document.getElementById("mode-state");

  function setState(el, state) {
    el.textContent = state;
    el.className = state === "ON" ? "on" : state === "OFF" ? "off" : "unknown";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.engine) {
        setState(alertEl, msg.engine.alert);
        setState(predEl, msg.engine.prediction);
        modeEl.textContent = msg.engine.mode;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
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

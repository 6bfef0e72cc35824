package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/touch-lamp/internal/status"
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
	"onOff": func(on bool) string {
		if on {
			return "ON"
		}
		return "OFF"
	},
	"countdown": func(s uint16) string {
		if s == 0 {
			return "-"
		}
		return fmt.Sprintf("%ds", s)
	},
	"hex": func(v uint16) string {
		return fmt.Sprintf("0x%04x", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Touch Lamp</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Touch Lamp<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Lamp</h2>
<table>
<tr><th>Lamp</th><td id="lamp" class="{{if .Lamp}}on{{else}}off{{end}}">{{onOff .Lamp}}</td></tr>
<tr><th>Phase</th><td id="phase">{{.Phase}}</td></tr>
<tr><th>Auto-off in</th><td id="countdown">{{countdown .Countdown}}</td></tr>
<tr><th>Ready</th><td id="ready">{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Sensor</h2>
<table>
<tr><th>Raw</th><td id="raw">{{hex .Detector.Raw}}</td></tr>
<tr><th>Baseline</th><td id="avg">{{hex .Detector.Avg}}</td></tr>
<tr><th>Derivative</th><td id="derivative">{{.Detector.Derivative}}</td></tr>
<tr><th>Integral</th><td id="integral">{{.Detector.Integral}}</td></tr>
<tr><th>Baseline frozen</th><td id="frozen">{{if .Detector.Frozen}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Touches</th><td id="touches">{{.Counts.Touches}}</td></tr>
<tr><th>Lamp ON</th><td>{{.Counts.LampOn}}</td></tr>
<tr><th>Lamp OFF</th><td>{{.Counts.LampOff}}</td></tr>
<tr><th>Auto OFF</th><td>{{.Counts.AutoOff}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms ({{.Config.LoopsPerSecond}}/s)</td></tr>
<tr><th>Polarity</th><td>{{.Config.Polarity}}</td></tr>
<tr><th>Auto-off</th><td>{{if eq .Config.AutoOffSeconds 0}}disabled{{else}}{{.Config.AutoOffSeconds}}s{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatSeconds 0}}disabled{{else}}{{.Config.HeartbeatSeconds}}s{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
{{if .Config.SerialPort}}<tr><th>Serial</th><td>{{.Config.SerialPort}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function hex(v) {
    return "0x" + ("0000" + v.toString(16)).slice(-4);
  }
  function set(id, text) {
    document.getElementById(id).textContent = text;
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/live");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        var lamp = document.getElementById("lamp");
        lamp.textContent = s.lamp;
        lamp.className = s.lamp === "ON" ? "on" : "off";
        set("phase", s.phase);
        set("countdown", s.countdown_s > 0 ? s.countdown_s + "s" : "-");
        set("ready", s.ready ? "yes" : "no");
        set("raw", hex(s.sensor.raw));
        set("avg", hex(s.sensor.avg));
        set("derivative", s.sensor.derivative);
        set("integral", s.sensor.integral);
        set("frozen", s.sensor.frozen ? "yes" : "no");
        set("touches", s.event_counts.touches);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}

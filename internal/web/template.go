package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sandglass/internal/status"
)

var statusTmpl = template.Must(template.New("status").Funcs(template.FuncMap{
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"clock": func(seconds int64) string {
		sign := ""
		if seconds < 0 {
			sign, seconds = "-", -seconds
		}
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, seconds/3600, seconds/60%60, seconds%60)
	},
	"when": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05 MST")
	},
}).Parse(statusHTML))

const statusHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sandglass status</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.running { color: green; font-weight: bold; }
.paused, .stopped { color: #888; }
.initial, .UNKNOWN { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Sandglass</h1>

<h2>Timer</h2>
<table>
<tr><th>State</th><td class="{{stateOrUnknown (printf "%s" .Timer.State)}}">{{stateOrUnknown (printf "%s" .Timer.State)}}{{if .Timer.PauseAutomatique}} (outside working hours){{end}}</td></tr>
<tr><th>Next movement</th><td>{{clock .Timer.Timeleft}} at {{when .Timer.DateMove}}</td></tr>
<tr><th>Following movement</th><td>{{clock .Timer.TimeleftNext}} at {{when .Timer.DateMoveNext}}</td></tr>
<tr><th>Movements</th><td>{{.Movements}}{{if not .LastMovement.IsZero}} (last {{when .LastMovement}}){{end}}</td></tr>
</table>

<h2>Calendar</h2>
<table>
<tr><th>Cycle</th><td>{{clock .Config.CycleSeconds}}</td></tr>
<tr><th>Working intervals</th><td>{{range $i, $iv := .Config.Intervals}}{{if $i}}, {{end}}{{$iv}}{{end}}</td></tr>
<tr><th>All days valid</th><td>{{if .Config.AllDaysValid}}yes{{else}}no{{end}}</td></tr>
<tr><th>Holidays</th><td>{{.Config.Holidays}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Display boards</th><td>{{.DisplayClients}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>GPIO panel</th><td>{{if .Config.GPIO}}enabled{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/status.json">JSON</a> · <a href="/">Display</a></p>
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
	statusTmpl.Execute(w, data)
}

// displayHTML is the built-in display board, used when no static UI is
// configured.
const displayHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sandglass</title>
<style>
body { font-family: sans-serif; background: #111; color: #eee; text-align: center; margin: 0; padding: 2em 1em; }
#timeleft { font-size: 8em; font-variant-numeric: tabular-nums; margin: 0.2em 0; }
#timeleft.late { color: #e55; }
.date { font-size: 1.6em; color: #aaa; }
.next { font-size: 1.2em; color: #777; margin-top: 1em; }
#state { text-transform: uppercase; letter-spacing: 0.2em; }
#state.running { color: #5c5; }
#state.paused, #state.stopped { color: #888; }
#auto { color: orange; visibility: hidden; }
#auto.on { visibility: visible; }
.flash { animation: flash 1s 3; }
@keyframes flash { 50% { background: #fff; color: #111; } }
.controls { margin-top: 3em; }
button, input { font-size: 1.1em; margin: 0 0.3em; }
input { width: 6em; }
.offline { color: #e55; }
</style>
</head>
<body>
<div id="state">-</div>
<div id="auto">outside working hours</div>
<div id="timeleft">--:--:--</div>
<div class="date" id="date_move"></div>
<div class="next">then <span id="timeleft_next">--:--:--</span> · <span id="date_move_next"></span></div>

<div class="controls">
<button data-cmd="start">Start</button>
<button data-cmd="pause">Pause</button>
<button data-cmd="stop">Stop</button>
<input id="seconds" type="number" min="0" placeholder="seconds">
<button data-cmd="init">Init</button>
</div>
<p id="link"><a href="/status">status</a></p>

<script>
(function() {
  var ws;

  function clock(s) {
    var sign = s < 0 ? "-" : "";
    s = Math.abs(s);
    function pad(n) { return n < 10 ? "0" + n : "" + n; }
    return sign + pad(Math.floor(s / 3600)) + ":" + pad(Math.floor(s / 60) % 60) + ":" + pad(s % 60);
  }

  function render(t) {
    var el = document.getElementById("timeleft");
    el.textContent = clock(t.timeleft);
    el.className = t.timeleft < 0 ? "late" : "";
    document.getElementById("timeleft_next").textContent = clock(t.timeleft_next);
    document.getElementById("date_move").textContent = t.date_move;
    document.getElementById("date_move_next").textContent = t.date_move_next;
    var st = document.getElementById("state");
    st.textContent = t.state;
    st.className = t.state;
    document.getElementById("auto").className = t.isPauseAutomatique ? "on" : "";
  }

  function flash() {
    document.body.classList.remove("flash");
    void document.body.offsetWidth;
    document.body.classList.add("flash");
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { document.getElementById("state").classList.remove("offline"); };
    ws.onmessage = function(e) {
      var msg = JSON.parse(e.data);
      if (msg.event === "mouvement") flash();
      render(msg.data);
    };
    ws.onclose = function() {
      var st = document.getElementById("state");
      st.textContent = "offline";
      st.className = "offline";
      setTimeout(connect, 2000);
    };
  }

  document.querySelectorAll("button[data-cmd]").forEach(function(b) {
    b.addEventListener("click", function() {
      if (!ws || ws.readyState !== WebSocket.OPEN) return;
      var msg = { event: b.dataset.cmd };
      if (msg.event === "init") msg.data = document.getElementById("seconds").value;
      ws.send(JSON.stringify(msg));
    });
  });

  connect();
})();
</script>
</body>
</html>
`

package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/parking-controller/internal/logic"
	"github.com/sweeney/parking-controller/internal/status"
)

// compactDuration renders d as "3d 4h 5m 6s", omitting leading zero units.
func compactDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	units := []struct {
		suffix string
		size   int64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}, {"s", 1}}

	var parts []string
	for _, u := range units {
		n := secs / u.size
		secs %= u.size
		if n > 0 || len(parts) > 0 || u.suffix == "s" {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
		}
	}
	return strings.Join(parts, " ")
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("15:04:05")
	},
	"gateClass": func(s logic.GateState) string {
		if s == logic.GateOpen {
			return "busy"
		}
		return "idle"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Parking Controller</title>
<style>
:root { --fg: #222; --muted: #777; --line: #e4e4e4; }
body { font: 14px/1.5 ui-monospace, monospace; color: var(--fg); max-width: 720px; margin: 1.5em auto; padding: 0 1em; }
header { display: flex; align-items: baseline; gap: .6em; border-bottom: 2px solid var(--fg); }
header h1 { font-size: 1.3em; margin: .2em 0; }
#live { font-size: .8em; color: var(--muted); }
#live.ok { color: #2a7; }
#live.err { color: #c33; }
.grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1em; margin-top: 1em; }
section { border: 1px solid var(--line); border-radius: 4px; padding: .4em .8em; }
section h2 { font-size: .85em; text-transform: uppercase; color: var(--muted); margin: .2em 0 .4em; }
dl { display: grid; grid-template-columns: auto 1fr; gap: .15em .8em; margin: 0; }
dt { color: var(--muted); }
dd { margin: 0; }
.busy { color: #c60; font-weight: bold; }
.idle { color: #2a7; }
.big { font-size: 1.6em; }
footer { margin-top: 1.5em; color: var(--muted); }
</style>
</head>
<body>
<header><h1>Parking Controller</h1><span id="live">connecting</span></header>

<div class="grid">
<section>
<h2>Facility</h2>
<dl>
<dt>Free</dt><dd class="big" id="available">{{.View.Facility.AvailableSlots}}</dd>
<dt>Inside</dt><dd id="inside">{{.View.Facility.CarsInside}}</dd>
<dt>Capacity</dt><dd>{{.Config.Capacity}} ({{.Config.Policy}} counting)</dd>
{{if not .Ready}}<dt>State</dt><dd>waiting for first tick</dd>{{end}}
</dl>
</section>

<section>
<h2>Slots</h2>
<dl>
{{range .Slots}}<dt>Slot {{.Number}}</dt><dd id="slot-{{.Number}}" class="{{if .Occupied}}busy{{else}}idle{{end}}">{{if .Occupied}}occupied since {{clock .TimeIn}}{{else}}free{{end}}</dd>
{{end}}</dl>
</section>

<section>
<h2>Gates</h2>
<dl>
<dt>Entrance</dt><dd id="gate-entrance" class="{{gateClass .View.Entrance.State}}">{{.View.Entrance.State}}</dd>
<dt>Exit</dt><dd id="gate-exit" class="{{gateClass .View.Exit.State}}">{{.View.Exit.State}}</dd>
<dt>Refused</dt><dd>{{.View.Counts.Refused}}</dd>
</dl>
</section>

<section>
<h2>Today</h2>
<dl>
<dt>Arrivals</dt><dd>{{.View.Counts.TimeIn}}</dd>
<dt>Departures</dt><dd>{{.View.Counts.TimeOut}}</dd>
<dt>Entrance</dt><dd>{{.View.Counts.EntranceOpened}} opens</dd>
<dt>Exit</dt><dd>{{.View.Counts.ExitOpened}} opens</dd>
</dl>
</section>

<section>
<h2>Links</h2>
<dl>
<dt>MQTT</dt><dd class="{{if .MQTTConnected}}idle{{else}}busy{{end}}">{{if .MQTTConnected}}up{{else}}down{{end}} {{.Config.Broker}}</dd>
<dt>Logger</dt><dd>{{if .Config.LoggerEndpoint}}{{.Config.LoggerEndpoint}}, {{.Dropped}} dropped{{else}}off{{end}}</dd>
{{with .Network}}<dt>Network</dt><dd>{{.Status}} {{.Type}}{{if .SSID}} {{.SSID}}{{end}}</dd>
<dt>IP</dt><dd>{{.IP}}</dd>{{end}}
</dl>
</section>

<section>
<h2>Process</h2>
<dl>
<dt>Up</dt><dd>{{.Uptime}}</dd>
<dt>Since</dt><dd>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</dd>
<dt>Poll</dt><dd>{{.Config.PollMs}}ms</dd>
<dt>Heartbeat</dt><dd>{{if .Config.HeartbeatMs}}{{.Config.HeartbeatMs}}ms{{else}}off{{end}}</dd>
</dl>
</section>
</div>

<footer><a href="/index.json">index.json</a></footer>
<script>
(function() {
  var live = document.getElementById("live");
  function put(id, text, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = text;
    if (cls) el.className = cls;
  }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { live.className = "ok"; live.textContent = "live"; };
    ws.onclose = function() {
      live.className = "err";
      live.textContent = "offline";
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      var st;
      try { st = JSON.parse(ev.data).data.status; } catch (e) { return; }
      put("available", st.facility.available_slots);
      put("inside", st.facility.cars_inside);
      st.slots.forEach(function(s) {
        put("slot-" + s.slot, s.occupied ? "occupied" : "free", s.occupied ? "busy" : "idle");
      });
      ["entrance", "exit"].forEach(function(g) {
        var state = st.gates[g].state;
        put("gate-" + g, state, state === "OPEN" ? "busy" : "idle");
      });
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type slotRow struct {
	Number int
	logic.Slot
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	page := struct {
		status.Snapshot
		Uptime string
		Slots  []slotRow
	}{
		Snapshot: snap,
		Uptime:   compactDuration(snap.Uptime()),
	}
	for i, s := range snap.View.Slots {
		page.Slots = append(page.Slots, slotRow{Number: i + 1, Slot: s})
	}
	return indexTmpl.Execute(w, page)
}

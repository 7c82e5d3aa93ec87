package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/parking-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	LastTick      string       `json:"last_tick,omitempty"`
	Policy        string       `json:"counting_policy"`
	Facility      FacilityJSON `json:"facility"`
	Slots         []SlotJSON   `json:"slots"`
	Gates         GatesJSON    `json:"gates"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Logger        LoggerStatus `json:"logger"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// FacilityJSON is the JSON representation of the capacity aggregate.
type FacilityJSON struct {
	Capacity       int `json:"capacity"`
	AvailableSlots int `json:"available_slots"`
	CarsInside     int `json:"cars_inside"`
}

// SlotJSON is the JSON representation of one slot. Slot is 1-based.
type SlotJSON struct {
	Slot     int    `json:"slot"`
	Occupied bool   `json:"occupied"`
	Sensor   string `json:"sensor"`
	TimeIn   string `json:"time_in,omitempty"`
	TimeOut  string `json:"time_out,omitempty"`
}

// GatesJSON holds both gates.
type GatesJSON struct {
	Entrance GateJSON `json:"entrance"`
	Exit     GateJSON `json:"exit"`
}

// GateJSON is the JSON representation of one gate.
type GateJSON struct {
	State    string `json:"state"`
	Sensor   string `json:"sensor"`
	OpenedAt string `json:"opened_at,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// LoggerStatus reports the external event logger.
type LoggerStatus struct {
	Endpoint string `json:"endpoint"`
	Dropped  int64  `json:"dropped"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	TimeIn         int `json:"time_in"`
	TimeOut        int `json:"time_out"`
	EntranceOpened int `json:"entrance_opened"`
	ExitOpened     int `json:"exit_opened"`
	Refused        int `json:"rejected_opens"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	Capacity        int    `json:"capacity"`
	PollMs          int64  `json:"poll_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	EntranceGuard   string `json:"entrance_guard"`
	ExitGuard       string `json:"exit_guard"`
	EntranceDwellMs int64  `json:"entrance_dwell_ms"`
	ExitDwellMs     int64  `json:"exit_dwell_ms"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
}

// formatTime renders t in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func gateJSON(g logic.GateView) GateJSON {
	state := string(g.State)
	if state == "" {
		state = "UNKNOWN"
	}
	out := GateJSON{State: state, Sensor: g.Sensor.String()}
	if g.State == logic.GateOpen {
		out.OpenedAt = formatTime(g.OpenedAt)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	v := snap.View

	slots := make([]SlotJSON, 0, len(v.Slots))
	for i, s := range v.Slots {
		level, _ := snap.SlotLevel(i)
		slots = append(slots, SlotJSON{
			Slot:     i + 1,
			Occupied: s.Occupied,
			Sensor:   level.String(),
			TimeIn:   formatTime(s.TimeIn),
			TimeOut:  formatTime(s.TimeOut),
		})
	}

	return StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		LastTick:      formatTime(v.LastTick),
		Policy:        string(v.Policy),
		Facility: FacilityJSON{
			Capacity:       v.Facility.Capacity,
			AvailableSlots: v.Facility.AvailableSlots,
			CarsInside:     v.Facility.CarsInside,
		},
		Slots: slots,
		Gates: GatesJSON{
			Entrance: gateJSON(v.Entrance),
			Exit:     gateJSON(v.Exit),
		},
		MQTT:   MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Logger: LoggerStatus{Endpoint: snap.Config.LoggerEndpoint, Dropped: snap.Dropped},
		Counts: CountsJSON{
			TimeIn:         v.Counts.TimeIn,
			TimeOut:        v.Counts.TimeOut,
			EntranceOpened: v.Counts.EntranceOpened,
			ExitOpened:     v.Counts.ExitOpened,
			Refused:        v.Counts.Refused,
		},
		Config: ConfigJSON{
			Capacity:        snap.Config.Capacity,
			PollMs:          snap.Config.PollMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			EntranceGuard:   snap.Config.EntranceGuard,
			ExitGuard:       snap.Config.ExitGuard,
			EntranceDwellMs: snap.Config.EntranceDwellMs,
			ExitDwellMs:     snap.Config.ExitDwellMs,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

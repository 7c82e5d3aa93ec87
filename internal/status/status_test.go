package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/parking-controller/internal/logic"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testView() logic.View {
	return logic.View{
		Slots: []logic.Slot{
			{Occupied: true, TimeIn: t0.Add(time.Minute)},
			{},
			{Occupied: false, TimeIn: t0.Add(time.Minute), TimeOut: t0.Add(2 * time.Minute)},
			{},
		},
		SlotLevels: []logic.Level{logic.Active, logic.Inactive, logic.Inactive, logic.Inactive},
		Entrance:   logic.GateView{ID: logic.Entrance, State: logic.GateOpen, OpenedAt: t0.Add(3 * time.Minute), Sensor: logic.Active},
		Exit:       logic.GateView{ID: logic.Exit, State: logic.GateClosed, OpenedAt: t0, Sensor: logic.Inactive},
		Facility:   logic.FacilityState{Capacity: 4, AvailableSlots: 3, CarsInside: 1},
		Policy:     logic.PolicySlot,
		Counts:     logic.EventCounts{TimeIn: 2, TimeOut: 1, EntranceOpened: 1, Refused: 3},
		LastTick:   t0.Add(3 * time.Minute),
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{Capacity: 4, PollMs: 50, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(t0, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(t0) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, t0)
	}
	if snap.Config.PollMs != 50 {
		t.Errorf("Config.PollMs: got %d, want 50", snap.Config.PollMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Ready {
		t.Error("expected Ready=false before the first tick")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestPublishAndSnapshot(t *testing.T) {
	tr := NewTracker(t0, Config{})

	tr.Publish(testView(), 7)

	snap := tr.Snapshot()
	if !snap.Ready {
		t.Error("expected Ready=true after publish")
	}
	if snap.Dropped != 7 {
		t.Errorf("Dropped: got %d, want 7", snap.Dropped)
	}
	if snap.View.Facility.AvailableSlots != 3 {
		t.Errorf("AvailableSlots: got %d, want 3", snap.View.Facility.AvailableSlots)
	}
	if snap.View.Entrance.State != logic.GateOpen {
		t.Errorf("entrance: got %s, want OPEN", snap.View.Entrance.State)
	}
}

func TestSnapshotSlotLevel(t *testing.T) {
	tr := NewTracker(t0, Config{})
	tr.Publish(testView(), 0)
	snap := tr.Snapshot()

	if l, ok := snap.SlotLevel(0); !ok || l != logic.Active {
		t.Errorf("slot 0: got %v ok=%v", l, ok)
	}
	if l, ok := snap.SlotLevel(1); !ok || l != logic.Inactive {
		t.Errorf("slot 1: got %v ok=%v", l, ok)
	}
	for _, i := range []int{-1, 4, 100} {
		if _, ok := snap.SlotLevel(i); ok {
			t.Errorf("slot %d should be out of range", i)
		}
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "ap", IP: "192.168.4.1", Status: "up"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.4.1" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.4.1")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: t0, Now: t0.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Publish(testView(), 0)

	snap1 := tr.Snapshot()

	v := testView()
	v.Facility = logic.FacilityState{Capacity: 4, AvailableSlots: 0, CarsInside: 4}
	tr.Publish(v, 1)

	if snap1.View.Facility.CarsInside != 1 {
		t.Error("snapshot should be a copy; facility was modified")
	}
	if snap1.Dropped != 0 {
		t.Error("snapshot should be a copy; dropped was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		View:          testView(),
		Ready:         true,
		Dropped:       2,
		StartTime:     t0,
		Now:           t0.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			Capacity:       4,
			Policy:         "slot",
			PollMs:         50,
			Broker:         "tcp://localhost:1883",
			LoggerEndpoint: "http://logger.local",
		},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.UptimeSeconds != 900 {
		t.Errorf("uptime: got %d, want 900", s.UptimeSeconds)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web status should carry no event/reason")
	}
	if s.Facility != (FacilityJSON{Capacity: 4, AvailableSlots: 3, CarsInside: 1}) {
		t.Errorf("facility: got %+v", s.Facility)
	}
	if len(s.Slots) != 4 {
		t.Fatalf("slots: got %d, want 4", len(s.Slots))
	}
	if s.Slots[0].Slot != 1 || !s.Slots[0].Occupied || s.Slots[0].Sensor != "1" {
		t.Errorf("slot 1: got %+v", s.Slots[0])
	}
	if s.Slots[0].TimeIn != "2026-01-01T00:01:00Z" || s.Slots[0].TimeOut != "" {
		t.Errorf("slot 1 times: got %+v", s.Slots[0])
	}
	if s.Slots[2].TimeOut != "2026-01-01T00:02:00Z" {
		t.Errorf("slot 3 time_out: got %q", s.Slots[2].TimeOut)
	}
	if s.Gates.Entrance.State != "OPEN" || s.Gates.Entrance.OpenedAt != "2026-01-01T00:03:00Z" {
		t.Errorf("entrance: got %+v", s.Gates.Entrance)
	}
	if s.Gates.Exit.State != "CLOSED" || s.Gates.Exit.OpenedAt != "" {
		t.Errorf("exit should be closed with no opened_at: got %+v", s.Gates.Exit)
	}
	if s.Counts.TimeIn != 2 || s.Counts.Refused != 3 {
		t.Errorf("counts: got %+v", s.Counts)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("mqtt: got %+v", s.MQTT)
	}
	if s.Logger.Dropped != 2 || s.Logger.Endpoint != "http://logger.local" {
		t.Errorf("logger: got %+v", s.Logger)
	}
	if s.Policy != "slot" {
		t.Errorf("policy: got %q", s.Policy)
	}
	if s.Network != nil {
		t.Error("network should be omitted when nil")
	}
}

func TestFormatJSONBeforeFirstTick(t *testing.T) {
	snap := Snapshot{StartTime: t0, Now: t0}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Ready {
		t.Error("expected ready=false")
	}
	if parsed.Status.Gates.Entrance.State != "UNKNOWN" {
		t.Errorf("entrance: got %q, want UNKNOWN", parsed.Status.Gates.Entrance.State)
	}
	if parsed.Status.Slots == nil {
		t.Error("slots should be an empty array, not null")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{View: testView(), Ready: true, StartTime: t0, Now: t0.Add(time.Hour)}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"]
	if status["event"] != "SHUTDOWN" {
		t.Errorf("event: got %v, want SHUTDOWN", status["event"])
	}
	if status["reason"] != "SIGTERM" {
		t.Errorf("reason: got %v, want SIGTERM", status["reason"])
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: t0, Now: t0}

	var raw map[string]map[string]any
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)

	status := raw["status"]
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: t0,
		Now:       t0.Add(time.Minute),
		Network:   &NetworkInfo{Type: "ap", IP: "192.168.4.1", Status: "up", SSID: "parking"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "parking" {
		t.Errorf("Network.SSID: got %q, want parking", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Publish(testView(), int64(i))
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}

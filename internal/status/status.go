// Package status provides a thread-safe status tracker for the parking controller.
// The control loop publishes one snapshot per tick; HTTP handlers and the
// MQTT heartbeat only ever read whole snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/parking-controller/internal/logic"
)

// NetworkInfo contains network state as reported by the host's network
// bootstrap. This is a local copy to avoid importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains controller configuration for display.
type Config struct {
	Capacity        int
	Policy          string
	PollMs          int64
	HeartbeatMs     int64
	EntranceGuard   string
	ExitGuard       string
	EntranceDwellMs int64
	ExitDwellMs     int64
	Broker          string
	HTTPAddr        string
	LoggerEndpoint  string
}

// Snapshot is a point-in-time view of controller state.
// It is a value type. The slices inside View are never mutated after
// publication, so sharing them between readers is safe.
type Snapshot struct {
	View          logic.View
	Ready         bool // at least one tick has been published
	Dropped       int64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// SlotLevel returns the logical sensor level of slot i, or false if i is out of range.
func (s Snapshot) SlotLevel(i int) (logic.Level, bool) {
	if i < 0 || i >= len(s.View.SlotLevels) {
		return logic.Inactive, false
	}
	return s.View.SlotLevels[i], true
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Publish replaces the facility view in one step, so a reader never sees a
// half-applied tick. Called from the control loop at the end of every tick.
func (t *Tracker) Publish(view logic.View, dropped int64) {
	t.mu.Lock()
	t.snap.View = view
	t.snap.Dropped = dropped
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

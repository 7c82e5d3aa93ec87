package logic

import (
	"testing"
	"time"
)

func TestHeartbeatDisabled(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Minute} {
		h := NewHeartbeat(interval, t0)
		if hb := h.Check(t0.Add(time.Hour), EventCounts{}); hb != nil {
			t.Errorf("interval %v: expected no heartbeat", interval)
		}
	}
}

func TestHeartbeatFiresAfterInterval(t *testing.T) {
	h := NewHeartbeat(15*time.Minute, t0)

	if hb := h.Check(t0.Add(14*time.Minute), EventCounts{}); hb != nil {
		t.Error("heartbeat fired before interval")
	}

	counts := EventCounts{TimeIn: 3, EntranceOpened: 2}
	hb := h.Check(t0.Add(15*time.Minute), counts)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}
	if hb.Counts != counts {
		t.Errorf("Counts: got %+v, want %+v", hb.Counts, counts)
	}

	// Next heartbeat is measured from the previous one.
	if hb := h.Check(t0.Add(20*time.Minute), counts); hb != nil {
		t.Error("heartbeat fired twice within one interval")
	}
	hb = h.Check(t0.Add(30*time.Minute), counts)
	if hb == nil {
		t.Fatal("expected second heartbeat")
	}
	if hb.Uptime != 30*time.Minute {
		t.Errorf("Uptime: got %v, want 30m", hb.Uptime)
	}
}

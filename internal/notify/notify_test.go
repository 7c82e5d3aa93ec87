package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/parking-controller/internal/logger"
	"github.com/sweeney/parking-controller/internal/logic"
)

func slotEvent(typ logic.EventType, slot int) logic.Event {
	return logic.Event{Type: typ, Slot: slot, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func waitEvent(t *testing.T, ch <-chan logic.Event) logic.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return logic.Event{}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewFakeSink()
	sink.Delivered = make(chan logic.Event, 10)
	d := NewDispatcher(10, time.Second, logger.Nop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(slotEvent(logic.EventTimeIn, 0))
	d.Enqueue(slotEvent(logic.EventTimeIn, 2))
	d.Enqueue(slotEvent(logic.EventTimeOut, 0))

	for i, want := range []int{0, 2, 0} {
		e := waitEvent(t, sink.Delivered)
		if e.Slot != want {
			t.Errorf("event %d: slot %d, want %d", i, e.Slot, want)
		}
	}
}

func TestDispatcherFanOutAndFailureIsolation(t *testing.T) {
	failing := NewFakeSink()
	failing.Err = errors.New("unreachable")
	ok := NewFakeSink()
	ok.Delivered = make(chan logic.Event, 10)
	d := NewDispatcher(10, time.Second, logger.Nop(), failing, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(slotEvent(logic.EventTimeIn, 1))
	d.Enqueue(slotEvent(logic.EventTimeOut, 1))
	waitEvent(t, ok.Delivered)
	waitEvent(t, ok.Delivered)

	if n := len(failing.Events()); n != 2 {
		t.Errorf("failing sink should still see every event once (no retry), got %d", n)
	}
}

func TestDispatcherEnqueueNeverBlocks(t *testing.T) {
	sink := NewFakeSink()
	sink.Block = make(chan struct{})
	defer close(sink.Block)
	d := NewDispatcher(2, time.Hour, logger.Nop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Enqueue(slotEvent(logic.EventTimeIn, i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a stalled sink")
	}
	if d.Dropped() == 0 {
		t.Error("expected dropped events with a stalled sink and a tiny queue")
	}
	if d.Pending() > 2 {
		t.Errorf("queue exceeded its bound: %d", d.Pending())
	}
}

func TestDispatcherDropsOldest(t *testing.T) {
	d := NewDispatcher(3, time.Second, logger.Nop())
	for i := 0; i < 5; i++ {
		d.Enqueue(slotEvent(logic.EventTimeIn, i))
	}
	if d.Dropped() != 2 {
		t.Errorf("Dropped: got %d, want 2", d.Dropped())
	}

	sink := NewFakeSink()
	sink.Delivered = make(chan logic.Event, 3)
	d.sinks = []Sink{sink}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	for _, want := range []int{2, 3, 4} {
		if e := waitEvent(t, sink.Delivered); e.Slot != want {
			t.Errorf("got slot %d, want %d", e.Slot, want)
		}
	}
}

func TestDispatcherDeliveryTimeout(t *testing.T) {
	slow := NewFakeSink()
	slow.Block = make(chan struct{})
	defer close(slow.Block)
	next := NewFakeSink()
	next.Delivered = make(chan logic.Event, 1)
	d := NewDispatcher(4, 20*time.Millisecond, logger.Nop(), slow, next)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(slotEvent(logic.EventTimeIn, 0))
	waitEvent(t, next.Delivered)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	d := NewDispatcher(1, time.Second, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatcherDrainDeliversEverythingQueued(t *testing.T) {
	sink := NewFakeSink()
	d := NewDispatcher(10, time.Second, logger.Nop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	for i := 0; i < 5; i++ {
		d.Enqueue(slotEvent(logic.EventTimeIn, i))
	}

	dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dcancel()
	if err := d.Drain(dctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	got := sink.Events()
	if len(got) != 5 {
		t.Fatalf("expected 5 delivered before Drain returned, got %d", len(got))
	}
	for i, e := range got {
		if e.Slot != i {
			t.Errorf("event %d: slot %d", i, e.Slot)
		}
	}
	if d.Pending() != 0 {
		t.Errorf("pending after drain: %d", d.Pending())
	}
}

func TestDispatcherDrainBoundedByContext(t *testing.T) {
	sink := NewFakeSink()
	sink.Block = make(chan struct{})
	defer close(sink.Block)
	d := NewDispatcher(10, time.Minute, logger.Nop(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	d.Enqueue(slotEvent(logic.EventTimeIn, 0))

	dctx, dcancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer dcancel()
	if err := d.Drain(dctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded from a stuck sink, got %v", err)
	}
}

func TestDispatcherDrainWithoutWorker(t *testing.T) {
	d := NewDispatcher(10, time.Second, logger.Nop())
	d.Enqueue(slotEvent(logic.EventTimeIn, 0))

	dctx, dcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer dcancel()
	if err := d.Drain(dctx); err == nil {
		t.Error("Drain must give up when no worker is running")
	}
}

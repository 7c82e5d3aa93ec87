// Package notify delivers facility events to external collaborators off the
// control loop. Delivery is best-effort: no retry, failures are only logged.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sweeney/parking-controller/internal/logger"
	"github.com/sweeney/parking-controller/internal/logic"
)

// Sink receives events from the Dispatcher worker.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Deliver sends one event. It must honour ctx cancellation.
	Deliver(ctx context.Context, event logic.Event) error
}

// Dispatcher is a bounded queue drained by a single background worker.
// Enqueue never blocks; when the queue is full the oldest event is dropped.
type Dispatcher struct {
	queue   chan logic.Event
	flush   chan chan struct{}
	sinks   []Sink
	timeout time.Duration
	log     *logger.Logger
	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher holding at most size pending events.
// Each delivery to each sink is bounded by timeout.
func NewDispatcher(size int, timeout time.Duration, log *logger.Logger, sinks ...Sink) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		queue:   make(chan logic.Event, size),
		flush:   make(chan chan struct{}),
		sinks:   sinks,
		timeout: timeout,
		log:     log,
	}
}

// Enqueue queues an event for delivery without blocking the caller.
func (d *Dispatcher) Enqueue(event logic.Event) {
	for {
		select {
		case d.queue <- event:
			return
		default:
		}

		select {
		case old := <-d.queue:
			n := d.dropped.Add(1)
			d.log.Warnw("notify_queue_full", "dropped_type", old.Type, "dropped_total", n)
		default:
		}
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			d.deliver(ctx, event)
		case done := <-d.flush:
			d.deliverQueued(ctx)
			close(done)
		}
	}
}

// Drain blocks until every event queued before the call has been handed to
// the sinks, or ctx is done. It requires Run to be active.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case d.flush <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliverQueued(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event logic.Event) {
	for _, s := range d.sinks {
		dctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Deliver(dctx, event)
		cancel()
		if err != nil {
			d.log.Warnw("notify_failed",
				"sink", s.Name(),
				"event", event.Type,
				"slot", event.Slot+1,
				"gate", event.Gate,
				"err", err,
			)
		}
	}
}

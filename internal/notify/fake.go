package notify

import (
	"context"
	"sync"

	"github.com/sweeney/parking-controller/internal/logic"
)

// FakeSink records delivered events for test assertions.
type FakeSink struct {
	mu     sync.Mutex
	events []logic.Event

	// Err, if set, is returned by Deliver after recording the event.
	Err error

	// Block, if set, makes Deliver wait until it is closed or ctx is done.
	Block chan struct{}

	// Delivered receives a value after every Deliver call, if set.
	Delivered chan logic.Event
}

// NewFakeSink creates a FakeSink for testing.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// Name implements Sink.
func (f *FakeSink) Name() string { return "fake" }

// Deliver implements Sink.
func (f *FakeSink) Deliver(ctx context.Context, event logic.Event) error {
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()

	if f.Delivered != nil {
		f.Delivered <- event
	}
	return f.Err
}

// Events returns a copy of the delivered events.
func (f *FakeSink) Events() []logic.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Event(nil), f.events...)
}

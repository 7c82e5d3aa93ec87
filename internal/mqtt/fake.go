package mqtt

import (
	"sync"

	"github.com/sweeney/parking-controller/internal/logic"
)

// Record is one message accepted by a FakePublisher. Exactly one of Event
// and System is set.
type Record struct {
	Topic   string
	Event   *logic.Event
	System  *SystemEvent
	Payload []byte
}

// FakePublisher keeps every accepted message in publish order. It is safe
// for concurrent use.
type FakePublisher struct {
	mu        sync.Mutex
	records   []Record
	eventErr  error
	systemErr error
	connected bool
	closed    bool
}

// NewFakePublisher creates an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// FailEvents makes Publish return err until it is called again with nil.
func (f *FakePublisher) FailEvents(err error) {
	f.mu.Lock()
	f.eventErr = err
	f.mu.Unlock()
}

// FailSystem makes PublishSystem return err until it is called again with nil.
func (f *FakePublisher) FailSystem(err error) {
	f.mu.Lock()
	f.systemErr = err
	f.mu.Unlock()
}

// SetConnected sets the value reported by IsConnected.
func (f *FakePublisher) SetConnected(up bool) {
	f.mu.Lock()
	f.connected = up
	f.mu.Unlock()
}

func (f *FakePublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	f.records = append(f.records, Record{Topic: Topic, Event: &event, Payload: payload})
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.systemErr != nil {
		return f.systemErr
	}
	f.records = append(f.records, Record{Topic: TopicSystem, System: &event, Payload: payload})
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Records returns a copy of everything published so far.
func (f *FakePublisher) Records() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.records...)
}

// Events returns the facility events in publish order.
func (f *FakePublisher) Events() []logic.Event {
	var out []logic.Event
	for _, r := range f.Records() {
		if r.Event != nil {
			out = append(out, *r.Event)
		}
	}
	return out
}

// SystemEvents returns the lifecycle events in publish order.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	var out []SystemEvent
	for _, r := range f.Records() {
		if r.System != nil {
			out = append(out, *r.System)
		}
	}
	return out
}

// Payloads returns the serialized messages sent to topic.
func (f *FakePublisher) Payloads(topic string) [][]byte {
	var out [][]byte
	for _, r := range f.Records() {
		if r.Topic == topic {
			out = append(out, r.Payload)
		}
	}
	return out
}

// Reset forgets all records and restores the initial state.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = nil
	f.eventErr, f.systemErr = nil, nil
	f.connected, f.closed = false, false
}

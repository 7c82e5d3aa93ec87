package mqtt

import (
	"context"

	"github.com/sweeney/parking-controller/internal/logic"
)

// EventSink adapts a Publisher to the notify dispatcher. Heartbeats become
// system events whose payload is produced by Status at delivery time.
type EventSink struct {
	Publisher Publisher
	Status    func(event string) []byte
}

// Name identifies the sink in logs.
func (s *EventSink) Name() string { return "mqtt" }

// Deliver publishes one event. The publisher bounds its own wait, so ctx is
// only checked before publishing.
func (s *EventSink) Deliver(ctx context.Context, event logic.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Type != logic.EventHeartbeat {
		return s.Publisher.Publish(event)
	}

	se := SystemEvent{Timestamp: event.Timestamp, Event: string(logic.EventHeartbeat)}
	if s.Status != nil {
		se.RawPayload = s.Status(se.Event)
	}
	return s.Publisher.PublishSystem(se)
}

// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/parking-controller/internal/logic"
)

// Topic is the MQTT topic for facility events.
const Topic = "parking/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "parking/controller/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a facility event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Parking EventPayload `json:"parking"`
}

// EventPayload contains the facility event details.
// Slot is 1-based and omitted for gate events.
type EventPayload struct {
	ID             string `json:"id"`
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	Slot           int    `json:"slot,omitempty"`
	Gate           string `json:"gate,omitempty"`
	AvailableSlots int    `json:"available_slots"`
	CarsInside     int    `json:"cars_inside"`
}

// FormatPayload creates the JSON payload for a facility event.
// Every payload carries a fresh id so consumers can drop duplicates.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := EventPayload{
		ID:             uuid.NewString(),
		Timestamp:      event.Timestamp.UTC().Format(time.RFC3339),
		Event:          string(event.Type),
		Gate:           string(event.Gate),
		AvailableSlots: event.Facility.AvailableSlots,
		CarsInside:     event.Facility.CarsInside,
	}
	if event.IsSlotEvent() {
		p.Slot = event.Slot + 1
	}
	return json.Marshal(Payload{Parking: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

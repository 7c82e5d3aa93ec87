// Package logic contains the pure control logic of the parking facility.
// This package has NO external dependencies (no GPIO, PWM, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Level is the logical level of an occupancy sensor.
type Level int

const (
	Inactive Level = iota // nothing in front of the sensor
	Active                // object present
)

// LevelOf converts a logical boolean reading into a Level.
func LevelOf(present bool) Level {
	if present {
		return Active
	}
	return Inactive
}

// String returns "1" for Active and "0" for Inactive.
func (l Level) String() string {
	if l == Active {
		return "1"
	}
	return "0"
}

// Pin returns the electrical level of an active-low IR sensor on a pulled-up
// input: "0" while an object is present, "1" otherwise. This is the text
// served by /d{n}.
func (l Level) Pin() string {
	if l == Active {
		return "0"
	}
	return "1"
}

// GateID identifies one of the two gates.
type GateID string

const (
	Entrance GateID = "entrance"
	Exit     GateID = "exit"
)

// GateState is the open/closed state of a gate.
type GateState string

const (
	GateClosed GateState = "CLOSED"
	GateOpen   GateState = "OPEN"
)

// OpenResult reports the outcome of an open command.
type OpenResult int

const (
	Opened      OpenResult = iota // transition Closed -> Open happened
	AlreadyOpen                   // re-trigger suppressed
	Rejected                      // guard predicate was false
	NoCommand                     // no open was requested this tick
)

func (r OpenResult) String() string {
	switch r {
	case Opened:
		return "opened"
	case AlreadyOpen:
		return "already_open"
	case Rejected:
		return "rejected"
	default:
		return "none"
	}
}

// EventType represents a state transition event.
type EventType string

const (
	EventTimeIn      EventType = "TIME_IN"
	EventTimeOut     EventType = "TIME_OUT"
	EventGateOpened  EventType = "GATE_OPENED"
	EventGateClosed  EventType = "GATE_CLOSED"
	EventOpenRefused EventType = "OPEN_REFUSED"
	EventHeartbeat   EventType = "HEARTBEAT"
)

// Event is a transition to be logged or published.
// Slot is the zero-based slot index for TIME_IN/TIME_OUT and -1 otherwise.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Slot      int
	Gate      GateID
	Facility  FacilityState
}

// IsSlotEvent reports whether e is an occupancy transition of a slot.
func (e Event) IsSlotEvent() bool {
	return e.Type == EventTimeIn || e.Type == EventTimeOut
}

// Slot is the occupancy bookkeeping of one parking slot.
type Slot struct {
	Occupied bool
	TimeIn   time.Time
	TimeOut  time.Time
}

// FacilityState is the facility-wide capacity aggregate.
type FacilityState struct {
	Capacity       int
	AvailableSlots int
	CarsInside     int
}

// Input represents one tick of sensor readings (already in logical form).
type Input struct {
	Slots    []Level
	Entrance Level
	Exit     Level
	Time     time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	TimeIn         int
	TimeOut        int
	EntranceOpened int
	ExitOpened     int
	Refused        int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

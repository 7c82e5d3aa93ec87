package logic

import (
	"errors"
	"fmt"
	"time"
)

// GuardMode names the may-open predicate of a gate.
type GuardMode string

const (
	GuardNone      GuardMode = "none"      // always open
	GuardCapacity  GuardMode = "capacity"  // open only while a slot is available
	GuardOccupancy GuardMode = "occupancy" // open only while a car is inside
)

// ParseGuardMode validates a guard name.
func ParseGuardMode(s string) (GuardMode, error) {
	switch GuardMode(s) {
	case GuardNone, GuardCapacity, GuardOccupancy:
		return GuardMode(s), nil
	}
	return "", fmt.Errorf("unknown guard %q (want none, capacity or occupancy)", s)
}

// Config configures a Facility.
type Config struct {
	Capacity      int
	Policy        Policy
	Entrance      GateConfig
	Exit          GateConfig
	EntranceGuard GuardMode
	ExitGuard     GuardMode
}

// GateView is a read-only copy of one gate's state.
type GateView struct {
	ID       GateID
	State    GateState
	OpenedAt time.Time
	Sensor   Level
}

// View is a deep copy of the facility state, safe to hand to other goroutines.
type View struct {
	Slots      []Slot
	SlotLevels []Level
	Entrance   GateView
	Exit       GateView
	Facility   FacilityState
	Policy     Policy
	Counts     EventCounts
	LastTick   time.Time
}

// Facility owns every piece of control state: both gates, the slot tracker
// and the capacity counter. It is mutated only through Tick, ForceOpen and
// CloseAll, all of which must be called from the control loop goroutine.
type Facility struct {
	entrance *Gate
	exit     *Gate
	slots    *SlotTracker
	counter  *Counter

	slotLevels []Level
	entrySense Level
	exitSense  Level
	lastTick   time.Time
	counts     EventCounts
}

// NewFacility validates cfg and builds a facility with both gates closed.
func NewFacility(cfg Config, entrance, exit Actuator) (*Facility, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", cfg.Capacity)
	}
	if _, err := ParsePolicy(string(cfg.Policy)); err != nil {
		return nil, err
	}
	if entrance == nil || exit == nil {
		return nil, errors.New("both gate actuators are required")
	}

	f := &Facility{
		slots:      NewSlotTracker(cfg.Capacity),
		counter:    NewCounter(cfg.Capacity, cfg.Policy),
		slotLevels: make([]Level, cfg.Capacity),
	}

	entryGuard, err := f.guard(cfg.EntranceGuard)
	if err != nil {
		return nil, fmt.Errorf("entrance: %w", err)
	}
	exitGuard, err := f.guard(cfg.ExitGuard)
	if err != nil {
		return nil, fmt.Errorf("exit: %w", err)
	}

	cfg.Entrance.ID = Entrance
	cfg.Exit.ID = Exit
	f.entrance = NewGate(cfg.Entrance, entrance, entryGuard)
	f.exit = NewGate(cfg.Exit, exit, exitGuard)
	return f, nil
}

func (f *Facility) guard(mode GuardMode) (Guard, error) {
	if mode == "" {
		mode = GuardNone
	}
	if _, err := ParseGuardMode(string(mode)); err != nil {
		return nil, err
	}
	switch mode {
	case GuardCapacity:
		return func() bool { return f.counter.Snapshot().AvailableSlots > 0 }, nil
	case GuardOccupancy:
		return func() bool { return f.counter.Snapshot().CarsInside > 0 }, nil
	}
	return nil, nil
}

// Tick advances every component once, in the order slots, counter, exit gate,
// entrance gate, and returns the transitions that happened.
func (f *Facility) Tick(in Input) []Event {
	now := in.Time
	f.lastTick = now

	var events []Event
	for _, e := range f.slots.Tick(in.Slots, now) {
		f.counter.OnSlotTransition(e)
		e.Facility = f.counter.Snapshot()
		events = append(events, e)
	}
	copy(f.slotLevels, in.Slots)

	events = append(events, f.advance(f.exit, in.Exit, f.exitSense, now)...)
	f.exitSense = in.Exit
	events = append(events, f.advance(f.entrance, in.Entrance, f.entrySense, now)...)
	f.entrySense = in.Entrance

	f.count(events)
	return events
}

// advance ticks one gate. A guard rejection is only reported on the rising
// edge of the sensor so that a car waiting at a full facility yields one event.
func (f *Facility) advance(g *Gate, level, prev Level, now time.Time) []Event {
	result, closed := g.Tick(level, now)

	var events []Event
	switch result {
	case Opened:
		events = append(events, f.opened(g, now))
	case Rejected:
		if prev == Inactive {
			events = append(events, f.event(EventOpenRefused, g.ID(), now))
		}
	}
	if closed {
		events = append(events, f.event(EventGateClosed, g.ID(), now))
	}
	return events
}

func (f *Facility) opened(g *Gate, now time.Time) Event {
	f.counter.OnGateTransition(g.ID())
	return f.event(EventGateOpened, g.ID(), now)
}

func (f *Facility) event(typ EventType, id GateID, now time.Time) Event {
	return Event{
		Timestamp: now,
		Type:      typ,
		Slot:      -1,
		Gate:      id,
		Facility:  f.counter.Snapshot(),
	}
}

// ForceOpen opens a gate on request of the API. The result distinguishes a
// real transition from a suppressed re-trigger or a guard rejection.
func (f *Facility) ForceOpen(id GateID, now time.Time) (OpenResult, []Event) {
	g := f.gate(id)
	if g == nil {
		return Rejected, nil
	}

	var events []Event
	result := g.ForceOpen(now)
	switch result {
	case Opened:
		events = append(events, f.opened(g, now))
	case Rejected:
		events = append(events, f.event(EventOpenRefused, id, now))
	}
	f.count(events)
	return result, events
}

// CloseAll closes any open gate. Used on shutdown so no arm is left raised.
func (f *Facility) CloseAll(now time.Time) []Event {
	var events []Event
	for _, g := range []*Gate{f.exit, f.entrance} {
		if g.Close() {
			events = append(events, f.event(EventGateClosed, g.ID(), now))
		}
	}
	return events
}

func (f *Facility) gate(id GateID) *Gate {
	switch id {
	case Entrance:
		return f.entrance
	case Exit:
		return f.exit
	}
	return nil
}

func (f *Facility) count(events []Event) {
	for _, e := range events {
		switch e.Type {
		case EventTimeIn:
			f.counts.TimeIn++
		case EventTimeOut:
			f.counts.TimeOut++
		case EventGateOpened:
			if e.Gate == Entrance {
				f.counts.EntranceOpened++
			} else {
				f.counts.ExitOpened++
			}
		case EventOpenRefused:
			f.counts.Refused++
		}
	}
}

// Snapshot returns the capacity aggregate.
func (f *Facility) Snapshot() FacilityState {
	return f.counter.Snapshot()
}

// Counts returns the event counts since startup.
func (f *Facility) Counts() EventCounts {
	return f.counts
}

// View returns a deep copy of the whole facility state.
func (f *Facility) View() View {
	levels := make([]Level, len(f.slotLevels))
	copy(levels, f.slotLevels)
	return View{
		Slots:      f.slots.Slots(),
		SlotLevels: levels,
		Entrance:   gateView(f.entrance, f.entrySense),
		Exit:       gateView(f.exit, f.exitSense),
		Facility:   f.counter.Snapshot(),
		Policy:     f.counter.Policy(),
		Counts:     f.counts,
		LastTick:   f.lastTick,
	}
}

func gateView(g *Gate, sensor Level) GateView {
	return GateView{
		ID:       g.ID(),
		State:    g.State(),
		OpenedAt: g.OpenedAt(),
		Sensor:   sensor,
	}
}

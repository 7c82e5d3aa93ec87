package logic

import "time"

// SlotTracker detects occupancy edges on the slot sensors.
type SlotTracker struct {
	slots []Slot
}

// NewSlotTracker creates a tracker with all slots vacant.
func NewSlotTracker(capacity int) *SlotTracker {
	return &SlotTracker{slots: make([]Slot, capacity)}
}

// Tick compares each reading against the stored occupancy and returns one
// event per changed slot, in ascending slot order. Readings beyond capacity
// are ignored; missing readings leave their slot untouched.
func (t *SlotTracker) Tick(levels []Level, now time.Time) []Event {
	var events []Event
	for i := range t.slots {
		if i >= len(levels) {
			break
		}
		s := &t.slots[i]
		present := levels[i] == Active

		if present == s.Occupied {
			continue
		}

		s.Occupied = present
		typ := EventTimeOut
		if present {
			s.TimeIn = now
			typ = EventTimeIn
		} else {
			s.TimeOut = now
		}
		events = append(events, Event{
			Timestamp: now,
			Type:      typ,
			Slot:      i,
		})
	}
	return events
}

// slot returns a copy of slot i.
func (t *SlotTracker) slot(i int) (Slot, bool) {
	if i < 0 || i >= len(t.slots) {
		return Slot{}, false
	}
	return t.slots[i], true
}

// Slots returns a copy of all slots.
func (t *SlotTracker) Slots() []Slot {
	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

// occupied returns the number of occupied slots.
func (t *SlotTracker) occupied() int {
	n := 0
	for _, s := range t.slots {
		if s.Occupied {
			n++
		}
	}
	return n
}

package logic

import "fmt"

// Policy selects which transitions drive the capacity counter.
type Policy string

const (
	// PolicySlot counts slot occupancy edges (TIME_IN +1, TIME_OUT -1).
	PolicySlot Policy = "slot"
	// PolicyGate counts gate openings (entrance +1, exit -1).
	PolicyGate Policy = "gate"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySlot, PolicyGate:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown counting policy %q (want slot or gate)", s)
}

// Counter is the single source of truth for facility capacity.
// Both AvailableSlots and CarsInside derive from one occupied count, so they
// can never drift apart.
type Counter struct {
	capacity int
	policy   Policy
	occupied int
}

// NewCounter creates an empty counter.
func NewCounter(capacity int, policy Policy) *Counter {
	return &Counter{capacity: capacity, policy: policy}
}

// OnSlotTransition applies a slot event. Ignored unless the policy is PolicySlot.
func (c *Counter) OnSlotTransition(e Event) {
	if c.policy != PolicySlot {
		return
	}
	switch e.Type {
	case EventTimeIn:
		c.add(1)
	case EventTimeOut:
		c.add(-1)
	}
}

// OnGateTransition applies one real Closed->Open transition of a gate.
// Ignored unless the policy is PolicyGate. Callers must not report
// suppressed or rejected opens.
func (c *Counter) OnGateTransition(id GateID) {
	if c.policy != PolicyGate {
		return
	}
	switch id {
	case Entrance:
		c.add(1)
	case Exit:
		c.add(-1)
	}
}

func (c *Counter) add(delta int) {
	c.occupied += delta
	if c.occupied < 0 {
		c.occupied = 0
	}
	if c.occupied > c.capacity {
		c.occupied = c.capacity
	}
}

// Snapshot returns the current facility state.
func (c *Counter) Snapshot() FacilityState {
	return FacilityState{
		Capacity:       c.capacity,
		AvailableSlots: c.capacity - c.occupied,
		CarsInside:     c.occupied,
	}
}

// Policy returns the active counting policy.
func (c *Counter) Policy() Policy { return c.policy }

package logic

import "time"

// Actuator moves a gate arm. Writes are assumed to always succeed;
// implementations report hardware faults through their own logging.
type Actuator interface {
	SetAngle(degrees int)
}

// Guard is the may-open predicate evaluated before a gate opens.
// A nil Guard always allows opening.
type Guard func() bool

// GateConfig parameterizes one gate.
type GateConfig struct {
	ID          GateID
	Dwell       time.Duration // time the gate stays open before auto-close
	OpenAngle   int
	ClosedAngle int
}

// Gate is the open/close state machine of a single gate.
type Gate struct {
	cfg      GateConfig
	act      Actuator
	guard    Guard
	state    GateState
	openedAt time.Time
}

// NewGate creates a closed gate and drives its actuator to the closed angle.
// After a restart any in-flight open state is lost, so the arm is always homed.
func NewGate(cfg GateConfig, act Actuator, guard Guard) *Gate {
	g := &Gate{
		cfg:   cfg,
		act:   act,
		guard: guard,
		state: GateClosed,
	}
	g.act.SetAngle(cfg.ClosedAngle)
	return g
}

// Tick advances the gate by one loop iteration.
// An Active sensor opens a closed gate (subject to the guard); an open gate
// closes once dwell has elapsed. It returns the open result (NoCommand when
// the sensor did not request an open) and whether the gate closed.
func (g *Gate) Tick(level Level, now time.Time) (OpenResult, bool) {
	result := NoCommand
	if level == Active && g.state == GateClosed {
		result = g.Open(now)
	}

	closed := false
	if g.state == GateOpen && now.Sub(g.openedAt) >= g.cfg.Dwell {
		closed = g.Close()
	}
	return result, closed
}

// Open opens the gate if it is closed and the guard holds.
func (g *Gate) Open(now time.Time) OpenResult {
	if g.state == GateOpen {
		return AlreadyOpen
	}
	if g.guard != nil && !g.guard() {
		return Rejected
	}
	g.act.SetAngle(g.cfg.OpenAngle)
	g.state = GateOpen
	g.openedAt = now
	return Opened
}

// ForceOpen opens the gate without a sensor trigger. It is subject to the
// same guard and re-trigger suppression as a sensor-driven open.
func (g *Gate) ForceOpen(now time.Time) OpenResult {
	return g.Open(now)
}

// Close drives the arm to the closed angle. It returns false if the gate was
// already closed.
func (g *Gate) Close() bool {
	if g.state == GateClosed {
		return false
	}
	g.act.SetAngle(g.cfg.ClosedAngle)
	g.state = GateClosed
	g.openedAt = time.Time{}
	return true
}

// ID returns the gate identity.
func (g *Gate) ID() GateID { return g.cfg.ID }

// State returns the current gate state.
func (g *Gate) State() GateState { return g.state }

// OpenedAt returns when the gate opened; zero while closed.
func (g *Gate) OpenedAt() time.Time { return g.openedAt }

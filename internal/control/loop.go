// Package control runs the facility's cooperative control loop. One goroutine
// owns the Facility; everything else talks to it through the loop.
package control

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/parking-controller/internal/gpio"
	"github.com/sweeney/parking-controller/internal/logger"
	"github.com/sweeney/parking-controller/internal/logic"
	"github.com/sweeney/parking-controller/internal/mqtt"
	"github.com/sweeney/parking-controller/internal/status"
)

// ErrStopped is returned by OpenGate once the loop has exited.
var ErrStopped = errors.New("control loop stopped")

// Queue accepts events for delivery off the control path.
// *notify.Dispatcher satisfies it.
type Queue interface {
	Enqueue(event logic.Event)
	Dropped() int64
	Drain(ctx context.Context) error
}

// Options wires a Loop. Reader, Facility, Events and Tracker are required.
type Options struct {
	Reader   gpio.Reader
	Facility *logic.Facility
	Events   Queue
	Tracker  *status.Tracker

	// System receives STARTUP and SHUTDOWN directly. Nil disables them.
	System mqtt.Publisher
	// MQTTStatus is sampled every tick for the status surface.
	MQTTStatus mqtt.ConnectionStatus
	// Network is polled on every heartbeat.
	Network func() *status.NetworkInfo

	// Heartbeat is the interval between HEARTBEAT events; 0 disables them.
	Heartbeat time.Duration

	// DrainTimeout bounds how long shutdown waits for queued events to be
	// delivered before SHUTDOWN is announced. Defaults to 2s.
	DrainTimeout time.Duration

	Log *logger.Logger
	Now func() time.Time
}

type command struct {
	gate  logic.GateID
	reply chan logic.OpenResult
}

// Loop is the control loop.
type Loop struct {
	opts      Options
	log       *logger.Logger
	now       func() time.Time
	heartbeat *logic.Heartbeat

	cmds chan command
	done chan struct{}
}

// New creates a loop. Run must be called exactly once.
func New(opts Options) *Loop {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 2 * time.Second
	}
	return &Loop{
		opts: opts,
		log:  opts.Log,
		now:  opts.Now,
		cmds: make(chan command, 16),
		done: make(chan struct{}),
	}
}

// OpenGate asks the loop to force a gate open. The command runs at the end
// of the next tick, after that tick's sensor logic.
func (l *Loop) OpenGate(ctx context.Context, id logic.GateID) (logic.OpenResult, error) {
	cmd := command{gate: id, reply: make(chan logic.OpenResult, 1)}

	select {
	case l.cmds <- cmd:
	case <-l.done:
		return logic.NoCommand, ErrStopped
	case <-ctx.Done():
		return logic.NoCommand, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-l.done:
		// the reply may have raced with shutdown
		select {
		case r := <-cmd.reply:
			return r, nil
		default:
			return logic.NoCommand, ErrStopped
		}
	case <-ctx.Done():
		return logic.NoCommand, ctx.Err()
	}
}

// Run processes ticks until a signal arrives. On signal it closes any open
// gate, waits for queued events to be delivered and publishes SHUTDOWN
// before returning.
func (l *Loop) Run(tick <-chan time.Time, sig <-chan os.Signal) error {
	defer close(l.done)

	start := l.now()
	l.heartbeat = logic.NewHeartbeat(l.opts.Heartbeat, start)
	l.publish()
	l.announce(start, "STARTUP", "")

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case <-tick:
			l.step(l.now())
		}
	}
}

func (l *Loop) step(now time.Time) {
	sample, err := l.opts.Reader.Read()
	if err != nil {
		// keep servicing commands and auto-close timers on stale levels
		l.log.Warnw("gpio_read_failed", "err", err)
		sample, err = l.lastSample()
	}
	if err == nil {
		l.emit(l.opts.Facility.Tick(input(sample, now)))
	}

	l.service(now)

	if hb := l.heartbeat.Check(now, l.opts.Facility.Counts()); hb != nil {
		if l.opts.Network != nil {
			if net := l.opts.Network(); net != nil {
				l.opts.Tracker.SetNetwork(net)
			}
		}
		l.log.Infow("heartbeat",
			"uptime", hb.Uptime,
			"time_in", hb.Counts.TimeIn,
			"time_out", hb.Counts.TimeOut,
			"entrance_opened", hb.Counts.EntranceOpened,
			"exit_opened", hb.Counts.ExitOpened,
			"rejected_opens", hb.Counts.Refused,
		)
		l.opts.Events.Enqueue(logic.Event{Timestamp: hb.Timestamp, Type: logic.EventHeartbeat, Slot: -1})
	}

	// last, so readers only ever see a finished tick
	l.publish()
}

// lastSample rebuilds the previous tick's levels from the facility view.
func (l *Loop) lastSample() (gpio.Sample, error) {
	v := l.opts.Facility.View()
	if v.LastTick.IsZero() {
		return gpio.Sample{}, errors.New("no previous sample")
	}
	s := gpio.Sample{
		Slots:    make([]bool, len(v.SlotLevels)),
		Entrance: v.Entrance.Sensor == logic.Active,
		Exit:     v.Exit.Sensor == logic.Active,
	}
	for i, lv := range v.SlotLevels {
		s.Slots[i] = lv == logic.Active
	}
	return s, nil
}

// service drains pending API commands without blocking.
func (l *Loop) service(now time.Time) {
	for {
		select {
		case cmd := <-l.cmds:
			result, events := l.opts.Facility.ForceOpen(cmd.gate, now)
			l.log.Infow("open_command", "gate", cmd.gate, "result", result.String())
			l.emit(events)
			cmd.reply <- result
		default:
			return
		}
	}
}

func (l *Loop) emit(events []logic.Event) {
	for _, e := range events {
		kv := []interface{}{
			"available_slots", e.Facility.AvailableSlots,
			"cars_inside", e.Facility.CarsInside,
		}
		if e.IsSlotEvent() {
			kv = append(kv, "slot", e.Slot+1)
		} else {
			kv = append(kv, "gate", e.Gate)
		}
		l.log.Infow(string(e.Type), kv...)
		l.opts.Events.Enqueue(e)
	}
}

// publish hands the post-tick state to readers in one step.
func (l *Loop) publish() {
	if l.opts.MQTTStatus != nil {
		l.opts.Tracker.SetMQTTConnected(l.opts.MQTTStatus.IsConnected())
	}
	l.opts.Tracker.Publish(l.opts.Facility.View(), l.opts.Events.Dropped())
}

func (l *Loop) shutdown(s os.Signal) {
	now := l.now()
	name := signalName(s)
	l.log.Infow("shutting_down", "signal", name)

	l.emit(l.opts.Facility.CloseAll(now))
	l.publish()

	// SHUTDOWN is retained, so it has to be the last word on the broker.
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.DrainTimeout)
	err := l.opts.Events.Drain(ctx)
	cancel()
	if err != nil {
		l.log.Warnw("notify_drain_incomplete", "err", err)
	}
	l.announce(now, "SHUTDOWN", name)
}

// announce publishes a lifecycle event with a full status snapshot.
func (l *Loop) announce(now time.Time, event, reason string) {
	if l.opts.System == nil {
		return
	}
	snap := l.opts.Tracker.Snapshot()
	err := l.opts.System.PublishSystem(mqtt.SystemEvent{
		Timestamp:  now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		l.log.Warnw("system_publish_failed", "event", event, "err", err)
		return
	}
	l.log.Infow("system_published", "event", event)
}

func input(s gpio.Sample, now time.Time) logic.Input {
	levels := make([]logic.Level, len(s.Slots))
	for i, present := range s.Slots {
		levels[i] = logic.LevelOf(present)
	}
	return logic.Input{
		Slots:    levels,
		Entrance: logic.LevelOf(s.Entrance),
		Exit:     logic.LevelOf(s.Exit),
		Time:     now,
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

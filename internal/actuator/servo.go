// Package actuator drives the gate arm servos.
package actuator

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/parking-controller/internal/logger"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Hobby servo timing: 50 Hz frame, 0.5 ms..2.5 ms pulse for 0..180 degrees.
const (
	servoFrequency = 50 * physic.Hertz
	servoPeriod    = 20 * time.Millisecond
	minPulse       = 500 * time.Microsecond
	maxPulse       = 2500 * time.Microsecond
	maxAngle       = 180
)

var initOnce sync.Once
var initErr error

// Init loads the periph host drivers. Safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		_, initErr = host.Init()
	})
	return initErr
}

// Servo is a PWM servo on a single header pin.
type Servo struct {
	pin  gpio.PinIO
	name string
	log  *logger.Logger
}

// NewServo looks up the named pin (e.g. "GPIO12") and returns a servo on it.
// Init must have been called first.
func NewServo(name string, log *logger.Logger) (*Servo, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("servo pin %q not found", name)
	}
	return &Servo{pin: pin, name: name, log: log}, nil
}

// SetAngle moves the servo to degrees (clamped to 0..180).
// A PWM failure is logged; the gate state machine assumes writes succeed.
func (s *Servo) SetAngle(degrees int) {
	if err := s.pin.PWM(Duty(degrees), servoFrequency); err != nil {
		s.log.Errorw("servo_write_failed", "pin", s.name, "angle", degrees, "err", err)
		return
	}
	s.log.Debugw("servo_moved", "pin", s.name, "angle", degrees)
}

// Halt stops the PWM output.
func (s *Servo) Halt() error {
	return s.pin.Halt()
}

// Duty converts an angle into the PWM duty cycle of a 50 Hz servo frame.
func Duty(degrees int) gpio.Duty {
	if degrees < 0 {
		degrees = 0
	}
	if degrees > maxAngle {
		degrees = maxAngle
	}
	pulse := minPulse + (maxPulse-minPulse)*time.Duration(degrees)/maxAngle
	return gpio.Duty(int64(gpio.DutyMax) * int64(pulse) / int64(servoPeriod))
}

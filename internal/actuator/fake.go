package actuator

import "sync"

// FakeServo records the angles written to it.
type FakeServo struct {
	mu     sync.Mutex
	angles []int
}

// NewFakeServo creates a FakeServo for testing.
func NewFakeServo() *FakeServo {
	return &FakeServo{}
}

// SetAngle records the angle.
func (f *FakeServo) SetAngle(degrees int) {
	f.mu.Lock()
	f.angles = append(f.angles, degrees)
	f.mu.Unlock()
}

// Angles returns a copy of every angle written so far.
func (f *FakeServo) Angles() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.angles...)
}

// Last returns the last angle written, or -1 if none.
func (f *FakeServo) Last() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.angles) == 0 {
		return -1
	}
	return f.angles[len(f.angles)-1]
}

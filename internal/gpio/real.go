//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the sensors from actual hardware using the Linux GPIO character device.
type RealReader struct {
	chip   *gpiocdev.Chip
	lines  *gpiocdev.Lines
	nSlots int
	values []int
}

// NewRealReader requests the slot, entrance and exit lines as one batch.
// Lines are requested as inputs with pull-up: the IR modules pull the line
// low while an object is in front of them.
func NewRealReader(pins Pins) (*RealReader, error) {
	if len(pins.Slots) == 0 {
		return nil, errors.New("gpio: no slot pins configured")
	}

	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", pins.Chip, err)
	}

	offsets := make([]int, 0, len(pins.Slots)+2)
	offsets = append(offsets, pins.Slots...)
	offsets = append(offsets, pins.Entrance, pins.Exit)

	lines, err := chip.RequestLines(offsets, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sensor lines %v: %w", offsets, err)
	}

	return &RealReader{
		chip:   chip,
		lines:  lines,
		nSlots: len(pins.Slots),
		values: make([]int, len(offsets)),
	}, nil
}

// Read returns the logical levels of all sensors.
// Inverts raw GPIO: raw 0 = object present, raw 1 = clear.
func (r *RealReader) Read() (Sample, error) {
	if err := r.lines.Values(r.values); err != nil {
		return Sample{}, fmt.Errorf("read sensor lines: %w", err)
	}

	s := Sample{Slots: make([]bool, r.nSlots)}
	for i := 0; i < r.nSlots; i++ {
		s.Slots[i] = r.values[i] == 0
	}
	s.Entrance = r.values[r.nSlots] == 0
	s.Exit = r.values[r.nSlots+1] == 0
	return s, nil
}

// Close releases GPIO resources.
// Lines are left as inputs with pull-up, matching the idle level of the sensors.
func (r *RealReader) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Package gpio provides occupancy sensor reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the infrared occupancy sensors.
type Reader interface {
	// Read returns the logical levels of every sensor.
	// The sensors are active-low: raw 0 = object present = logical true.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Sample represents a single reading of all sensors (already in logical form).
type Sample struct {
	Slots    []bool // true = object present
	Entrance bool
	Exit     bool
}

// Pins describes the line offsets of the sensors on one GPIO chip.
type Pins struct {
	Chip     string
	Slots    []int
	Entrance int
	Exit     int
}

// Default pin definitions (BCM numbering).
var DefaultPins = Pins{
	Chip:     "gpiochip0",
	Slots:    []int{5, 6, 13, 19},
	Entrance: 20,
	Exit:     21,
}

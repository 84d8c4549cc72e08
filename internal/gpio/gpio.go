// Package gpio reads a single digital input line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads one input line.
type Reader interface {
	// Read returns the logical level of the line. Active-low lines are
	// inverted before they are returned.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the gpiochip device the daemon opens.
const DefaultChip = "gpiochip0"

// DefaultPin is the default input line (BCM numbering).
const DefaultPin = 17

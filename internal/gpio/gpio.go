// Package gpio provides the door-switch and motion-sensor inputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/garage-sensor/internal/logic"

// Levels is a single reading of both inputs (true = HIGH).
type Levels struct {
	Door   bool // HIGH = switch contacts touching = door open
	Motion bool // HIGH while the PIR sensor reports movement
}

// Reader reads the current input levels.
type Reader interface {
	Read() (Levels, error)

	// Close releases GPIO resources.
	Close() error
}

// Handler receives raw level changes. It is called from the driver's event
// goroutine and must not block.
type Handler func(logic.Signal)

// Watcher is a Reader that can also deliver edge interrupts.
type Watcher interface {
	Reader

	// Watch installs h as the receiver of edge events on both lines.
	Watch(h Handler) error
}

// Default pin definitions (BCM numbering) and chip.
const (
	DefaultChip      = "gpiochip0"
	DefaultPinDoor   = 5
	DefaultPinMotion = 6
)

// Options selects the chip and lines to use.
type Options struct {
	Chip      string
	DoorPin   int
	MotionPin int
}

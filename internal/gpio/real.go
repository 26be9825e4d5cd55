//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/garage-sensor/internal/logic"
)

const consumer = "garage-sensor"

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip       *gpiocdev.Chip
	doorLine   *gpiocdev.Line
	motionLine *gpiocdev.Line
	doorPin    int
	motionPin  int
	now        func() time.Time

	mu      sync.RWMutex
	handler Handler
}

// NewRealReader requests the door and motion lines as inputs with both-edge
// detection. Edge events are dropped until Watch installs a handler.
func NewRealReader(opts Options) (*RealReader, error) {
	if opts.Chip == "" {
		opts.Chip = DefaultChip
	}

	chip, err := gpiocdev.NewChip(opts.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", opts.Chip, err)
	}

	r := &RealReader{
		chip:      chip,
		doorPin:   opts.DoorPin,
		motionPin: opts.MotionPin,
		now:       time.Now,
	}

	// The switch pulls the line high when the door is open.
	doorLine, err := chip.RequestLine(opts.DoorPin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.onEvent))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request door pin %d: %w", opts.DoorPin, err)
	}
	r.doorLine = doorLine

	motionLine, err := chip.RequestLine(opts.MotionPin,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.onEvent))
	if err != nil {
		doorLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request motion pin %d: %w", opts.MotionPin, err)
	}
	r.motionLine = motionLine

	return r, nil
}

// Read returns the current levels of both lines.
func (r *RealReader) Read() (Levels, error) {
	door, err := r.doorLine.Value()
	if err != nil {
		return Levels{}, fmt.Errorf("read door pin: %w", err)
	}

	motion, err := r.motionLine.Value()
	if err != nil {
		return Levels{}, fmt.Errorf("read motion pin: %w", err)
	}

	return Levels{Door: door == 1, Motion: motion == 1}, nil
}

// Watch installs h as the receiver of edge events.
func (r *RealReader) Watch(h Handler) error {
	if h == nil {
		return errors.New("gpio: nil handler")
	}
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
	return nil
}

func (r *RealReader) onEvent(evt gpiocdev.LineEvent) {
	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()
	if h == nil {
		return
	}

	var pin logic.Pin
	switch evt.Offset {
	case r.doorPin:
		pin = logic.PinDoor
	case r.motionPin:
		pin = logic.PinMotion
	default:
		return
	}

	h(logic.Signal{
		Pin:        pin,
		Level:      evt.Type == gpiocdev.LineEventRisingEdge,
		ObservedAt: r.now(),
	})
}

// Close releases GPIO resources.
// Lines are reconfigured to plain inputs with pull-down (matching Pi boot
// defaults) before closing so the pins are left in a clean state.
func (r *RealReader) Close() error {
	var errs []error

	for name, line := range map[string]*gpiocdev.Line{"door": r.doorLine, "motion": r.motionLine} {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}

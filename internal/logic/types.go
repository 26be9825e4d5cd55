// Package logic contains the pure decision logic of the garage sensor:
// debouncing raw pin levels, the door state machine, the motion rearm limiter
// and the time-of-day alert gate.
//
// This package has NO external dependencies (no GPIO, HTTP, MQTT or OS).
// Time is always injected via time.Time parameters. Every type guards its own
// state with a mutex because the interrupt path and scheduled jobs call into
// it from different goroutines.
package logic

import "time"

// Pin identifies one of the monitored digital inputs.
type Pin string

const (
	PinDoor   Pin = "door"
	PinMotion Pin = "motion"
)

// Signal is a raw level change observed on a pin, before debouncing.
type Signal struct {
	Pin        Pin
	Level      bool // true = HIGH
	ObservedAt time.Time
}

// Transition is a raw signal the Debouncer accepted.
type Transition struct {
	Pin   Pin
	Level bool
	At    time.Time
}

// DoorState is the canonical open/closed state of the door.
type DoorState struct {
	IsOpen        bool
	LastChangedAt time.Time
}

// DoorChangedEvent is emitted when the door state actually changes.
type DoorChangedEvent struct {
	IsOpen bool
	At     time.Time
}

// Category selects which alert window applies.
type Category string

const (
	CategoryDoor   Category = "door"
	CategoryMotion Category = "motion"
)

// AlertWindow is the configured hour pair for an alert category.
type AlertWindow struct {
	MinHour int
	MaxHour int
}

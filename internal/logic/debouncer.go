package logic

import (
	"sync"
	"time"
)

// DefaultDebounceInterval is the quiet window between accepted transitions on a pin.
const DefaultDebounceInterval = time.Second

// pinState tracks the last accepted level for a single pin.
type pinState struct {
	// Level last accepted (or synced from a poll)
	Level bool
	// Whether Level holds a real observation
	Known bool
	// Time of the last accepted transition; zero if none yet
	AcceptedAt time.Time
}

// Debouncer admits at most one transition per pin per quiet window.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	pins     map[Pin]*pinState
}

// NewDebouncer creates a Debouncer with the given interval.
// A non-positive interval falls back to DefaultDebounceInterval.
func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{
		interval: interval,
		pins:     make(map[Pin]*pinState),
	}
}

// Interval returns the configured debounce interval.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}

// Accept decides whether a raw level on pin is a real transition.
// The level must differ from the last accepted level for that pin and at
// least the debounce interval must have elapsed since the last accepted
// transition. Rejected signals leave the bookkeeping untouched.
func (d *Debouncer) Accept(pin Pin, level bool, now time.Time) (Transition, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.pins[pin]
	if !ok {
		st = &pinState{}
		d.pins[pin] = st
	}

	if st.Known && st.Level == level {
		return Transition{}, false
	}
	if !st.AcceptedAt.IsZero() && now.Sub(st.AcceptedAt) < d.interval {
		return Transition{}, false
	}

	st.Level = level
	st.Known = true
	st.AcceptedAt = now
	return Transition{Pin: pin, Level: level, At: now}, true
}

// Sync records a level read directly from the pin (startup baseline or a
// scheduled poll) without starting a new quiet window. A later interrupt
// carrying the same level is then dropped, and one carrying the opposite
// level is still judged against the last accepted transition time.
func (d *Debouncer) Sync(pin Pin, level bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.pins[pin]
	if !ok {
		st = &pinState{}
		d.pins[pin] = st
	}
	st.Level = level
	st.Known = true
}

// LastAccepted returns the last known level for pin and whether one exists.
func (d *Debouncer) LastAccepted(pin Pin) (bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.pins[pin]
	if !ok || !st.Known {
		return false, false
	}
	return st.Level, true
}

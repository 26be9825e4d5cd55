package logic

import (
	"sync"
	"time"
)

// DefaultMotionRearm is the minimum gap between two motion alerts.
const DefaultMotionRearm = 60 * time.Second

// MotionRateLimiter suppresses motion alerts within the rearm interval.
type MotionRateLimiter struct {
	mu          sync.Mutex
	rearm       time.Duration
	lastAlertAt time.Time
	alerted     bool
}

// NewMotionRateLimiter creates a limiter. A non-positive rearm falls back to
// DefaultMotionRearm.
func NewMotionRateLimiter(rearm time.Duration) *MotionRateLimiter {
	if rearm <= 0 {
		rearm = DefaultMotionRearm
	}
	return &MotionRateLimiter{rearm: rearm}
}

// TryAlert reports whether a motion alert may fire at now and, if so, records
// now as the last alert time. The rearm interval must be strictly exceeded.
func (l *MotionRateLimiter) TryAlert(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.alerted && now.Sub(l.lastAlertAt) <= l.rearm {
		return false
	}

	l.lastAlertAt = now
	l.alerted = true
	return true
}

// LastAlertAt returns the time of the last permitted alert, if any.
func (l *MotionRateLimiter) LastAlertAt() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastAlertAt, l.alerted
}

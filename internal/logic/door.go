package logic

import (
	"sync"
	"time"
)

// DoorStateMachine owns the canonical door state. Every change, whether it
// comes from a debounced interrupt or a scheduled poll, goes through Transition.
type DoorStateMachine struct {
	mu    sync.RWMutex
	state DoorState
}

// NewDoorStateMachine creates a state machine starting at initial.
func NewDoorStateMachine(initial DoorState) *DoorStateMachine {
	return &DoorStateMachine{state: initial}
}

// Transition requests the door to move to isOpen at now. A request matching
// the current state is a no-op and returns false.
func (m *DoorStateMachine) Transition(isOpen bool, now time.Time) (DoorChangedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsOpen == isOpen {
		return DoorChangedEvent{}, false
	}

	m.state = DoorState{IsOpen: isOpen, LastChangedAt: now}
	return DoorChangedEvent{IsOpen: isOpen, At: now}, true
}

// CurrentState returns a copy of the committed state.
func (m *DoorStateMachine) CurrentState() DoorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

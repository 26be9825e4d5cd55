package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/garage-sensor/internal/logic"
)

// MotionRecord is a motion detection seen by FakePublisher.
type MotionRecord struct {
	At      time.Time
	Alerted bool
}

// FakePublisher records published events for test assertions.
// It is safe for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	// DoorEvents contains all door changes that were published.
	DoorEvents []logic.DoorChangedEvent

	// Motions contains all motion detections that were published.
	Motions []MotionRecord

	// Payloads contains the JSON payloads published on TopicEvents.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishDoor and PublishMotion.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishDoor records the door change.
func (f *FakePublisher) PublishDoor(event logic.DoorChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatDoorPayload(event)
	if err != nil {
		return err
	}
	f.DoorEvents = append(f.DoorEvents, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishMotion records the motion detection.
func (f *FakePublisher) PublishMotion(at time.Time, alerted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatMotionPayload(at, alerted)
	if err != nil {
		return err
	}
	f.Motions = append(f.Motions, MotionRecord{At: at, Alerted: alerted})
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SystemEventNames returns the Event field of each recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		out[i] = e.Event
	}
	return out
}

// Doors returns a copy of the recorded door events.
func (f *FakePublisher) Doors() []logic.DoorChangedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.DoorChangedEvent(nil), f.DoorEvents...)
}

// MotionRecords returns a copy of the recorded motions.
func (f *FakePublisher) MotionRecords() []MotionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MotionRecord(nil), f.Motions...)
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DoorEvents = nil
	f.Motions = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}

// Package mqtt mirrors door and motion events and agent lifecycle events to a
// local MQTT broker, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/garage-sensor/internal/logic"
)

// TopicEvents is the MQTT topic for door and motion events.
const TopicEvents = "home/garage/sensor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/garage/sensor/system"

// EventType names a sensor event on TopicEvents.
type EventType string

const (
	EventDoorOpened EventType = "DOOR_OPENED"
	EventDoorClosed EventType = "DOOR_CLOSED"
	EventMotion     EventType = "MOTION"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishDoor sends a door state change.
	// Returns error if publishing fails (should not crash the process).
	PublishDoor(event logic.DoorChangedEvent) error

	// PublishMotion sends a motion detection; alerted reports whether an
	// alert was dispatched for it.
	PublishMotion(at time.Time, alerted bool) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure for sensor events.
type Payload struct {
	Garage GaragePayload `json:"garage"`
}

// GaragePayload contains the event details.
type GaragePayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Door      string `json:"door,omitempty"`
	Alerted   *bool  `json:"alerted,omitempty"`
}

// DoorString renders a door state as OPEN or CLOSED.
func DoorString(isOpen bool) string {
	if isOpen {
		return "OPEN"
	}
	return "CLOSED"
}

// FormatDoorPayload creates the JSON payload for a door change.
func FormatDoorPayload(event logic.DoorChangedEvent) ([]byte, error) {
	typ := EventDoorClosed
	if event.IsOpen {
		typ = EventDoorOpened
	}
	return json.Marshal(Payload{
		Garage: GaragePayload{
			Timestamp: event.At.UTC().Format(time.RFC3339),
			Event:     string(typ),
			Door:      DoorString(event.IsOpen),
		},
	})
}

// FormatMotionPayload creates the JSON payload for a motion detection.
func FormatMotionPayload(at time.Time, alerted bool) ([]byte, error) {
	return json.Marshal(Payload{
		Garage: GaragePayload{
			Timestamp: at.UTC().Format(time.RFC3339),
			Event:     string(EventMotion),
			Alerted:   &alerted,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// Package collector sends status snapshots and alert messages to the remote
// collector over HTTP JSON. Every call is a single best-effort attempt: no
// retries, no backoff. Callers log the outcome and carry on.
package collector

import (
	"context"
	"encoding/json"
	"time"
)

// Endpoint paths on the collector.
const (
	PathDoorStatus = "/doorStatus"
	PathTemp       = "/temp"
	PathSendAlert  = "/sendAlert"
)

// Header names sent with every request.
const (
	HeaderAPIToken  = "x-api-token"
	HeaderRequestID = "X-Request-ID"
)

// Uploader sends periodic status snapshots.
type Uploader interface {
	UploadDoorStatus(ctx context.Context, status DoorStatus) error
	UploadTemperature(ctx context.Context, temp Temperature) error
}

// AlertDispatcher relays a free-text alert.
type AlertDispatcher interface {
	SendAlert(ctx context.Context, message string) error
}

// Client is the full collector surface used by the monitor.
type Client interface {
	Uploader
	AlertDispatcher
}

// DoorStatus is the body of POST /doorStatus.
type DoorStatus struct {
	IsOpen   bool   `json:"isOpen"`
	DateTime string `json:"dateTime"`
}

// Temperature is the body of POST /temp.
type Temperature struct {
	TempF float64 `json:"tempF"`
}

// Alert is the body of POST /sendAlert.
type Alert struct {
	Message string `json:"message"`
}

// NewDoorStatus builds a door payload stamped with at in RFC 3339.
func NewDoorStatus(isOpen bool, at time.Time) DoorStatus {
	return DoorStatus{IsOpen: isOpen, DateTime: at.Format(time.RFC3339)}
}

// FormatPayload marshals any of the payload types.
func FormatPayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

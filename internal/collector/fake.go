package collector

import (
	"context"
	"sync"
)

// FakeClient records calls for test assertions. It is safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	DoorStatuses []DoorStatus
	Temperatures []Temperature
	Alerts       []string

	// UploadError, if set, is returned by both upload methods (after recording).
	UploadError error
	// AlertError, if set, is returned by SendAlert (after recording).
	AlertError error
}

// NewFakeClient creates a FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// UploadDoorStatus records status.
func (f *FakeClient) UploadDoorStatus(_ context.Context, status DoorStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DoorStatuses = append(f.DoorStatuses, status)
	return f.UploadError
}

// UploadTemperature records temp.
func (f *FakeClient) UploadTemperature(_ context.Context, temp Temperature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Temperatures = append(f.Temperatures, temp)
	return f.UploadError
}

// SendAlert records message.
func (f *FakeClient) SendAlert(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Alerts = append(f.Alerts, message)
	return f.AlertError
}

// SentAlerts returns a copy of the recorded alerts.
func (f *FakeClient) SentAlerts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Alerts...)
}

// SentDoorStatuses returns a copy of the recorded door uploads.
func (f *FakeClient) SentDoorStatuses() []DoorStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DoorStatus(nil), f.DoorStatuses...)
}

// SentTemperatures returns a copy of the recorded temperature uploads.
func (f *FakeClient) SentTemperatures() []Temperature {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Temperature(nil), f.Temperatures...)
}

// Reset clears recorded calls and errors.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DoorStatuses = nil
	f.Temperatures = nil
	f.Alerts = nil
	f.UploadError = nil
	f.AlertError = nil
}

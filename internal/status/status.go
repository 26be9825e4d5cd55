// Package status provides a thread-safe status tracker for the garage-sensor daemon.
// It is read by the HTTP status endpoint and the MQTT heartbeat.
package status

import (
	"os"
	"sync"
	"time"

	"github.com/sweeney/garage-sensor/internal/logic"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	EnvNetworkType       = "NETWORK_TYPE"
	EnvNetworkIP         = "NETWORK_IP"
	EnvNetworkStatus     = "NETWORK_STATUS"
	EnvNetworkGateway    = "NETWORK_GATEWAY"
	EnvNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	EnvNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// NetworkFromEnv reads pi-helper's variables. It returns nil when
// NETWORK_STATUS is unset.
func NetworkFromEnv() *NetworkInfo {
	s := os.Getenv(EnvNetworkStatus)
	if s == "" {
		return nil
	}
	return &NetworkInfo{
		Type:       os.Getenv(EnvNetworkType),
		IP:         os.Getenv(EnvNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(EnvNetworkGateway),
		WifiStatus: os.Getenv(EnvNetworkWifiStatus),
		SSID:       os.Getenv(EnvNetworkWifiSSID),
	}
}

// Config contains daemon configuration for display.
type Config struct {
	DebounceMs    int64
	MotionRearmMs int64
	DoorWindow    logic.AlertWindow
	MotionWindow  logic.AlertWindow
	CollectorURL  string
	Broker        string
	HTTPAddr      string
}

// Counts tracks activity since startup.
type Counts struct {
	DoorOpened       int
	DoorClosed       int
	Motion           int
	MotionSuppressed int
	AlertsSent       int
	AlertsFailed     int
	UploadsOK        int
	UploadsFailed    int
}

// JobStatus is the display form of a scheduled job.
type JobStatus struct {
	Name      string
	Cadence   string
	LastRunAt time.Time
	NextRunAt time.Time
	LastErr   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Door          logic.DoorState
	DoorKnown     bool
	LastMotionAt  time.Time
	Counts        Counts
	Jobs          []JobStatus
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetClock replaces the clock used to stamp snapshots.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// SetDoor records the committed door state.
func (t *Tracker) SetDoor(state logic.DoorState) {
	t.mu.Lock()
	t.snap.Door = state
	t.snap.DoorKnown = true
	t.mu.Unlock()
}

// RecordDoorChange records an accepted door transition.
func (t *Tracker) RecordDoorChange(event logic.DoorChangedEvent) {
	t.mu.Lock()
	t.snap.Door = logic.DoorState{IsOpen: event.IsOpen, LastChangedAt: event.At}
	t.snap.DoorKnown = true
	if event.IsOpen {
		t.snap.Counts.DoorOpened++
	} else {
		t.snap.Counts.DoorClosed++
	}
	t.mu.Unlock()
}

// RecordMotion records an accepted motion detection and whether the rate
// limiter or alert window suppressed its alert.
func (t *Tracker) RecordMotion(at time.Time, suppressed bool) {
	t.mu.Lock()
	t.snap.Counts.Motion++
	t.snap.LastMotionAt = at
	if suppressed {
		t.snap.Counts.MotionSuppressed++
	}
	t.mu.Unlock()
}

// RecordAlert records the outcome of an alert dispatch.
func (t *Tracker) RecordAlert(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.Counts.AlertsFailed++
	} else {
		t.snap.Counts.AlertsSent++
	}
	t.mu.Unlock()
}

// RecordUpload records the outcome of an upload.
func (t *Tracker) RecordUpload(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.Counts.UploadsFailed++
	} else {
		t.snap.Counts.UploadsOK++
	}
	t.mu.Unlock()
}

// SetJobs replaces the scheduled job view.
func (t *Tracker) SetJobs(jobs []JobStatus) {
	cp := append([]JobStatus(nil), jobs...)
	t.mu.Lock()
	t.snap.Jobs = cp
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set from the tracker's clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Jobs = append([]JobStatus(nil), t.snap.Jobs...)
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}

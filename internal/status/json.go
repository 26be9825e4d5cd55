package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Door          string       `json:"door"`
	DoorChangedAt string       `json:"door_changed_at,omitempty"`
	LastMotionAt  string       `json:"last_motion_at,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Jobs          []JobJSON    `json:"jobs,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// CountsJSON is the JSON representation of Counts.
type CountsJSON struct {
	DoorOpened       int `json:"door_opened"`
	DoorClosed       int `json:"door_closed"`
	Motion           int `json:"motion"`
	MotionSuppressed int `json:"motion_suppressed"`
	AlertsSent       int `json:"alerts_sent"`
	AlertsFailed     int `json:"alerts_failed"`
	UploadsOK        int `json:"uploads_ok"`
	UploadsFailed    int `json:"uploads_failed"`
}

// JobJSON is the JSON representation of a scheduled job.
type JobJSON struct {
	Name      string `json:"name"`
	Cadence   string `json:"cadence"`
	LastRunAt string `json:"last_run_at,omitempty"`
	NextRunAt string `json:"next_run_at,omitempty"`
	LastErr   string `json:"last_error,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// WindowJSON is an alert hour window.
type WindowJSON struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DebounceMs    int64      `json:"debounce_ms"`
	MotionRearmMs int64      `json:"motion_rearm_ms"`
	DoorWindow    WindowJSON `json:"door_alert_hours"`
	MotionWindow  WindowJSON `json:"motion_alert_hours"`
	CollectorURL  string     `json:"collector_url"`
	HTTPAddr      string     `json:"http_addr,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	door := "UNKNOWN"
	if snap.DoorKnown {
		door = "CLOSED"
		if snap.Door.IsOpen {
			door = "OPEN"
		}
	}

	inner := StatusInner{
		Door:          door,
		DoorChangedAt: formatTime(snap.Door.LastChangedAt),
		LastMotionAt:  formatTime(snap.LastMotionAt),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     formatTime(snap.StartTime),
		Timestamp:     formatTime(snap.Now),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			DoorOpened:       snap.Counts.DoorOpened,
			DoorClosed:       snap.Counts.DoorClosed,
			Motion:           snap.Counts.Motion,
			MotionSuppressed: snap.Counts.MotionSuppressed,
			AlertsSent:       snap.Counts.AlertsSent,
			AlertsFailed:     snap.Counts.AlertsFailed,
			UploadsOK:        snap.Counts.UploadsOK,
			UploadsFailed:    snap.Counts.UploadsFailed,
		},
		Config: ConfigJSON{
			DebounceMs:    snap.Config.DebounceMs,
			MotionRearmMs: snap.Config.MotionRearmMs,
			DoorWindow:    WindowJSON{Min: snap.Config.DoorWindow.MinHour, Max: snap.Config.DoorWindow.MaxHour},
			MotionWindow:  WindowJSON{Min: snap.Config.MotionWindow.MinHour, Max: snap.Config.MotionWindow.MaxHour},
			CollectorURL:  snap.Config.CollectorURL,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}

	for _, j := range snap.Jobs {
		inner.Jobs = append(inner.Jobs, JobJSON{
			Name:      j.Name,
			Cadence:   j.Cadence,
			LastRunAt: formatTime(j.LastRunAt),
			NextRunAt: formatTime(j.NextRunAt),
			LastErr:   j.LastErr,
		})
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

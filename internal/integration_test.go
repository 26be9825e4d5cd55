package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/garage-sensor/internal/collector"
	"github.com/sweeney/garage-sensor/internal/config"
	"github.com/sweeney/garage-sensor/internal/gpio"
	"github.com/sweeney/garage-sensor/internal/logic"
	"github.com/sweeney/garage-sensor/internal/monitor"
	"github.com/sweeney/garage-sensor/internal/mqtt"
	"github.com/sweeney/garage-sensor/internal/status"
	"github.com/sweeney/garage-sensor/internal/temperature"
	"github.com/sweeney/garage-sensor/internal/web"
)

type posted struct {
	Path string
	Body json.RawMessage
}

// collectorServer records every POST the real HTTP client makes.
type collectorServer struct {
	mu    sync.Mutex
	posts []posted
	code  int
}

func (c *collectorServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.posts = append(c.posts, posted{Path: r.URL.Path, Body: body})
	code := c.code
	c.mu.Unlock()
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
}

func (c *collectorServer) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.posts))
	for i, p := range c.posts {
		out[i] = p.Path
	}
	return out
}

func (c *collectorServer) bodies(path string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, p := range c.posts {
		if p.Path == path {
			out = append(out, string(p.Body))
		}
	}
	return out
}

type env struct {
	m       *monitor.Monitor
	inputs  *gpio.FakeReader
	server  *collectorServer
	pub     *mqtt.FakePublisher
	tracker *status.Tracker

	mu  sync.Mutex
	now time.Time
}

func (e *env) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *env) setNow(t time.Time) {
	e.mu.Lock()
	e.now = t
	e.mu.Unlock()
}

func newEnv(t *testing.T, initial gpio.Levels, start time.Time) *env {
	t.Helper()

	srv := &collectorServer{}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIToken = "secret"
	cfg.CollectorURL = ts.URL
	cfg.TimeZone = "UTC"
	require.NoError(t, cfg.Validate())

	e := &env{
		inputs:  gpio.NewFakeReader(initial),
		server:  srv,
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(start, status.Config{CollectorURL: ts.URL}),
		now:     start,
	}
	e.tracker.SetClock(e.clock)

	m, err := monitor.New(cfg, monitor.Deps{
		Inputs:      e.inputs,
		Collector:   collector.NewHTTPClient(cfg.CollectorURL, cfg.APIToken, cfg.HTTPTimeout),
		Thermometer: &temperature.FakeSensor{Celsius: 5},
		Publisher:   e.pub,
		Tracker:     e.tracker,
		Now:         e.clock,
	})
	require.NoError(t, err)
	require.NoError(t, m.RegisterJobs())
	e.m = m
	return e
}

func night(hh, mm, ss int) time.Time {
	return time.Date(2026, 1, 1, hh, mm, ss, 0, time.UTC)
}

// TestIntegrationNightFlow follows a door opening and motion in the small
// hours through the HTTP collector and the MQTT mirror.
func TestIntegrationNightFlow(t *testing.T) {
	e := newEnv(t, gpio.Levels{}, night(1, 59, 0))
	ctx := context.Background()

	e.m.HandleSignal(ctx, logic.Signal{Pin: logic.PinDoor, Level: true, ObservedAt: night(2, 0, 0)})
	e.m.HandleSignal(ctx, logic.Signal{Pin: logic.PinDoor, Level: false, ObservedAt: night(2, 0, 0).Add(300 * time.Millisecond)})
	e.m.HandleSignal(ctx, logic.Signal{Pin: logic.PinMotion, Level: true, ObservedAt: night(2, 0, 5)})

	assert.Equal(t, []string{collector.PathDoorStatus, collector.PathSendAlert, collector.PathSendAlert}, e.server.paths())
	assert.JSONEq(t, `{"isOpen":true,"dateTime":"2026-01-01T02:00:00Z"}`, e.server.bodies(collector.PathDoorStatus)[0])
	alerts := e.server.bodies(collector.PathSendAlert)
	assert.JSONEq(t, `{"message":"The garage door is opening @ 2:00 AM"}`, alerts[0])
	assert.JSONEq(t, `{"message":"Movement detected in garage @ 2:00 AM"}`, alerts[1])

	require.Len(t, e.pub.Payloads, 2)
	assert.JSONEq(t, `{"garage":{"timestamp":"2026-01-01T02:00:00Z","event":"DOOR_OPENED","door":"OPEN"}}`, string(e.pub.Payloads[0]))
	assert.JSONEq(t, `{"garage":{"timestamp":"2026-01-01T02:00:05Z","event":"MOTION","alerted":true}}`, string(e.pub.Payloads[1]))
}

// TestIntegrationScheduledUploads drives the scheduler through a night with
// the door left open.
func TestIntegrationScheduledUploads(t *testing.T) {
	e := newEnv(t, gpio.Levels{Door: true}, night(22, 50, 0))
	ctx := context.Background()

	for _, ts := range []time.Time{night(23, 0, 0), night(23, 1, 0), night(23, 15, 0)} {
		e.setNow(ts)
		e.m.Scheduler().Advance(ctx, ts)
	}

	assert.Equal(t, []string{
		`{"isOpen":true,"dateTime":"2026-01-01T23:00:00Z"}`,
	}, e.server.bodies(collector.PathDoorStatus))
	assert.Equal(t, []string{
		`{"message":"The garage door is open @ 11:00 PM"}`,
		`{"message":"The garage door is open @ 11:15 PM"}`,
	}, e.server.bodies(collector.PathSendAlert))
	assert.Equal(t, []string{`{"tempF":41}`}, e.server.bodies(collector.PathTemp))

	info, ok := e.m.Scheduler().Job(monitor.JobDoorAlertCheck)
	require.True(t, ok)
	assert.Equal(t, night(23, 15, 0), info.LastRunAt)
	assert.Equal(t, 2, info.Runs)
}

func TestIntegrationCollectorFailureDoesNotStopFlow(t *testing.T) {
	e := newEnv(t, gpio.Levels{}, night(3, 0, 0))
	e.server.code = http.StatusBadGateway
	ctx := context.Background()

	e.m.HandleSignal(ctx, logic.Signal{Pin: logic.PinDoor, Level: true, ObservedAt: night(3, 0, 1)})
	e.m.HandleSignal(ctx, logic.Signal{Pin: logic.PinDoor, Level: false, ObservedAt: night(3, 0, 5)})

	assert.Len(t, e.server.paths(), 4)
	assert.False(t, e.m.DoorState().IsOpen)

	snap := e.tracker.Snapshot()
	assert.Equal(t, 2, snap.Counts.UploadsFailed)
	assert.Equal(t, 2, snap.Counts.AlertsFailed)
}

func TestIntegrationPublishFailureDoesNotStopFlow(t *testing.T) {
	e := newEnv(t, gpio.Levels{}, night(3, 0, 0))
	e.pub.PublishError = errors.New("broker down")

	e.m.HandleSignal(context.Background(), logic.Signal{Pin: logic.PinDoor, Level: true, ObservedAt: night(3, 0, 1)})

	assert.Equal(t, []string{collector.PathDoorStatus, collector.PathSendAlert}, e.server.paths())
	assert.True(t, e.m.DoorState().IsOpen)
}

func TestIntegrationHeartbeatReflectsActivity(t *testing.T) {
	t.Setenv(status.EnvNetworkStatus, "connected")
	t.Setenv(status.EnvNetworkIP, "192.168.1.50")

	e := newEnv(t, gpio.Levels{}, night(12, 0, 0))
	ctx := context.Background()
	e.m.HandleSignal(ctx, logic.Signal{Pin: logic.PinDoor, Level: true, ObservedAt: night(12, 1, 0)})
	e.m.HandleSignal(ctx, logic.Signal{Pin: logic.PinMotion, Level: true, ObservedAt: night(12, 2, 0)})

	e.setNow(night(12, 15, 0))
	e.m.Scheduler().Advance(ctx, night(12, 15, 0))

	require.Equal(t, []string{"HEARTBEAT"}, e.pub.SystemEventNames())
	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal(e.pub.SystemEvents[0].RawPayload, &sj))
	assert.Equal(t, "HEARTBEAT", sj.Status.Event)
	assert.Equal(t, "OPEN", sj.Status.Door)
	assert.Equal(t, 1, sj.Status.Counts.DoorOpened)
	assert.Equal(t, 1, sj.Status.Counts.Motion)
	assert.Equal(t, 1, sj.Status.Counts.MotionSuppressed)
	assert.Equal(t, int64(900), sj.Status.UptimeSeconds)
	require.NotNil(t, sj.Status.Network)
	assert.Equal(t, "192.168.1.50", sj.Status.Network.IP)
	assert.NotEmpty(t, sj.Status.Jobs)
}

func TestIntegrationStatusEndpoint(t *testing.T) {
	e := newEnv(t, gpio.Levels{}, night(4, 0, 0))
	e.m.HandleSignal(context.Background(), logic.Signal{Pin: logic.PinDoor, Level: true, ObservedAt: night(4, 0, 1)})

	ts := httptest.NewServer(web.New(":0", e.m).Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	assert.Equal(t, "OPEN", sj.Status.Door)
	assert.Equal(t, 1, sj.Status.Counts.AlertsSent)
	assert.Equal(t, 1, sj.Status.Counts.UploadsOK)
	assert.Len(t, sj.Status.Jobs, 4)
}

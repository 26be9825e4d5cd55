package monitor

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/garage-sensor/internal/collector"
	"github.com/sweeney/garage-sensor/internal/gpio"
	"github.com/sweeney/garage-sensor/internal/logic"
	"github.com/sweeney/garage-sensor/internal/mqtt"
	"github.com/sweeney/garage-sensor/internal/status"
)

func TestRegisterJobs(t *testing.T) {
	r := newRig(t, gpio.Levels{}, at(12, 0, 0))
	require.NoError(t, r.m.RegisterJobs())

	var names []string
	for _, j := range r.m.Scheduler().Jobs() {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{JobDoorAlertCheck, JobHeartbeat, JobUploadDoor, JobUploadTemp}, names)

	// Registering twice is a configuration error.
	assert.Error(t, r.m.RegisterJobs())
}

func TestRegisterJobsWithoutPublisher(t *testing.T) {
	m, err := New(testConfig(t), Deps{
		Inputs:    gpio.NewFakeReader(gpio.Levels{}),
		Collector: collector.NewFakeClient(),
	})
	require.NoError(t, err)
	require.NoError(t, m.RegisterJobs())

	_, ok := m.Scheduler().Job(JobHeartbeat)
	assert.False(t, ok)
	assert.Len(t, m.Scheduler().Jobs(), 3)
}

func TestRegisterJobsRejectsBadCadence(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.UploadTemp = "every so often"
	m, err := New(cfg, Deps{
		Inputs:    gpio.NewFakeReader(gpio.Levels{}),
		Collector: collector.NewFakeClient(),
	})
	require.NoError(t, err)
	assert.ErrorContains(t, m.RegisterJobs(), JobUploadTemp)
}

func TestScheduledJobsVirtualClock(t *testing.T) {
	r := newRig(t, gpio.Levels{Door: true}, at(18, 50, 0))
	require.NoError(t, r.m.RegisterJobs())
	ctx := context.Background()

	// 19:00 is both a half-hour and a quarter-hour inside the alert hours.
	r.setNow(at(19, 0, 0))
	fired := r.m.Scheduler().Advance(ctx, at(19, 0, 0))
	assert.ElementsMatch(t, []string{JobUploadDoor, JobDoorAlertCheck}, fired)

	assert.Equal(t, []collector.DoorStatus{{IsOpen: true, DateTime: "2026-03-10T19:00:00Z"}}, r.client.SentDoorStatuses())
	assert.Equal(t, []string{"The garage door is open @ 7:00 PM"}, r.client.SentAlerts())

	r.setNow(at(19, 5, 0))
	fired = r.m.Scheduler().Advance(ctx, at(19, 5, 0))
	assert.ElementsMatch(t, []string{JobUploadTemp, JobHeartbeat}, fired)
	assert.Equal(t, []collector.Temperature{{TempF: 68}}, r.client.SentTemperatures())
	assert.Equal(t, []string{"HEARTBEAT"}, r.pub.SystemEventNames())
}

func TestSnapshotIncludesJobs(t *testing.T) {
	r := newRig(t, gpio.Levels{}, at(12, 0, 0))
	require.NoError(t, r.m.RegisterJobs())
	r.pub.Connected = true

	snap := r.m.Snapshot()
	assert.Len(t, snap.Jobs, 4)
	assert.True(t, snap.MQTTConnected)
}

type pollOnly struct{}

func (pollOnly) Read() (gpio.Levels, error) { return gpio.Levels{}, nil }
func (pollOnly) Close() error               { return nil }

func TestRunRequiresWatcher(t *testing.T) {
	m, err := New(testConfig(t), Deps{Inputs: pollOnly{}, Collector: collector.NewFakeClient()})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Run(context.Background(), nil), ErrNoWatcher)
}

func TestRunProcessesInterruptsUntilSignal(t *testing.T) {
	inputs := gpio.NewFakeReader(gpio.Levels{Door: false})
	client := collector.NewFakeClient()
	pub := mqtt.NewFakePublisher()
	m, err := New(testConfig(t), Deps{
		Inputs:    inputs,
		Collector: client,
		Publisher: pub,
		Tracker:   status.NewTracker(time.Now(), status.Config{}),
	})
	require.NoError(t, err)

	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background(), sig) }()

	require.Eventually(t, func() bool {
		return inputs.Emit(logic.Signal{Pin: logic.PinDoor, Level: true, ObservedAt: time.Now()})
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(client.SentDoorStatuses()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, m.DoorState().IsOpen)

	sig <- syscall.SIGTERM
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after SIGTERM")
	}

	assert.Equal(t, []string{"STARTUP", "SHUTDOWN"}, pub.SystemEventNames())
	last := pub.SystemEvents[len(pub.SystemEvents)-1]
	assert.Equal(t, "SIGTERM", last.Reason)
	assert.True(t, last.Retained)
	assert.NotEmpty(t, last.RawPayload)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	r := newRig(t, gpio.Levels{}, time.Now())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.m.Run(ctx, nil) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, "CONTEXT", r.pub.SystemEvents[len(r.pub.SystemEvents)-1].Reason)
}

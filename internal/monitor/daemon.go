package monitor

import (
	"context"
	"os"
	"syscall"

	"github.com/sweeney/garage-sensor/internal/gpio"
	"github.com/sweeney/garage-sensor/internal/logger"
	"github.com/sweeney/garage-sensor/internal/logic"
	"github.com/sweeney/garage-sensor/internal/mqtt"
	"github.com/sweeney/garage-sensor/internal/schedule"
	"github.com/sweeney/garage-sensor/internal/status"
)

// signalQueueSize bounds the edge events waiting for the processing loop.
const signalQueueSize = 64

type jobSpec struct {
	name    string
	cadence string
	action  schedule.Action
}

// RegisterJobs adds the periodic jobs to the scheduler. The heartbeat is
// only registered when an MQTT publisher is present and its interval is set.
func (m *Monitor) RegisterJobs() error {
	jobs := []jobSpec{
		{JobUploadDoor, m.cfg.Schedule.UploadDoor, m.CheckUploadDoor},
		{JobUploadTemp, m.cfg.Schedule.UploadTemp, m.CheckUploadTemp},
		{JobDoorAlertCheck, m.cfg.Schedule.DoorAlertCheck, m.CheckDoorStatusAndAlert},
	}
	if m.publisher != nil && m.cfg.Schedule.Heartbeat > 0 {
		jobs = append(jobs, jobSpec{JobHeartbeat, "@every " + m.cfg.Schedule.Heartbeat.String(), m.heartbeat})
	}

	for _, j := range jobs {
		if err := m.scheduler.Register(j.name, j.cadence, j.action); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot refreshes the tracker's job and MQTT views and returns its
// snapshot. It satisfies web.SnapshotSource.
func (m *Monitor) Snapshot() status.Snapshot {
	if m.tracker == nil {
		return status.Snapshot{}
	}
	jobs := m.scheduler.Jobs()
	view := make([]status.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		view = append(view, status.JobStatus{
			Name:      j.Name,
			Cadence:   j.Cadence,
			LastRunAt: j.LastRunAt,
			NextRunAt: j.NextRunAt,
			LastErr:   j.LastErr,
		})
	}
	m.tracker.SetJobs(view)
	if cs, ok := m.publisher.(mqtt.ConnectionStatus); ok {
		m.tracker.SetMQTTConnected(cs.IsConnected())
	}
	return m.tracker.Snapshot()
}

func (m *Monitor) heartbeat(ctx context.Context) error {
	if m.tracker != nil {
		m.tracker.SetNetwork(status.NetworkFromEnv())
	}
	return m.publishSystem(ctx, "HEARTBEAT", "", false)
}

func (m *Monitor) publishSystem(ctx context.Context, event, reason string, retained bool) error {
	if m.publisher == nil {
		return nil
	}
	ev := mqtt.SystemEvent{
		Timestamp: m.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if m.tracker != nil {
		ev.RawPayload = status.FormatStatusEvent(m.Snapshot(), event, reason)
	}
	if err := m.publisher.PublishSystem(ev); err != nil {
		logger.WarnKV(ctx, "mqtt system publish failed", "event", event, "error", err)
		return err
	}
	logger.DebugKV(ctx, "published system event", "event", event)
	return nil
}

// Run is the daemon loop. It installs edge interrupts, runs the scheduler and
// processes signals in arrival order until sig delivers or ctx is done, then
// publishes SHUTDOWN and waits for in-flight jobs.
func (m *Monitor) Run(ctx context.Context, sig <-chan os.Signal) error {
	watcher, ok := m.inputs.(gpio.Watcher)
	if !ok {
		return ErrNoWatcher
	}

	queue := make(chan logic.Signal, signalQueueSize)
	err := watcher.Watch(func(s logic.Signal) {
		select {
		case queue <- s:
		default:
			logger.WarnKV(ctx, "signal queue full, dropping edge", "pin", s.Pin, "level", s.Level)
		}
	})
	if err != nil {
		return err
	}

	_ = m.publishSystem(ctx, "STARTUP", "", true)
	logger.InfoKV(ctx, "monitor started",
		"door_open", m.DoorState().IsOpen,
		"debounce", m.cfg.Debounce,
		"motion_rearm", m.cfg.MotionRearm,
		"time_zone", m.loc.String(),
	)

	schedCtx, stopSchedule := context.WithCancel(ctx)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = m.scheduler.Run(schedCtx)
	}()

	reason := ""
loop:
	for {
		select {
		case s := <-sig:
			reason = signalName(s)
			logger.InfoKV(ctx, "received signal, shutting down", "signal", reason)
			break loop
		case <-ctx.Done():
			reason = "CONTEXT"
			break loop
		case s := <-queue:
			m.HandleSignal(ctx, s)
		}
	}

	stopSchedule()
	<-schedDone
	_ = m.publishSystem(context.WithoutCancel(ctx), "SHUTDOWN", reason, true)
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

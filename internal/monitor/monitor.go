// Package monitor wires the sensor inputs, decision logic and collector
// client into the garage agent's data flow: the interrupt path, the one-shot
// checks and the scheduled jobs.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/garage-sensor/internal/collector"
	"github.com/sweeney/garage-sensor/internal/config"
	"github.com/sweeney/garage-sensor/internal/gpio"
	"github.com/sweeney/garage-sensor/internal/logger"
	"github.com/sweeney/garage-sensor/internal/logic"
	"github.com/sweeney/garage-sensor/internal/mqtt"
	"github.com/sweeney/garage-sensor/internal/schedule"
	"github.com/sweeney/garage-sensor/internal/status"
	"github.com/sweeney/garage-sensor/internal/temperature"
)

// TimeLayout is how alert messages render the time of day.
const TimeLayout = "3:04 PM"

// Job names.
const (
	JobUploadDoor     = "upload-door"
	JobUploadTemp     = "upload-temp"
	JobDoorAlertCheck = "door-alert-check"
	JobHeartbeat      = "heartbeat"
)

// ErrNoWatcher is returned by Run when the inputs cannot deliver interrupts.
var ErrNoWatcher = errors.New("monitor: inputs do not support edge events")

// Deps are the collaborators of a Monitor. Publisher and Tracker are optional.
type Deps struct {
	Inputs      gpio.Reader
	Collector   collector.Client
	Thermometer temperature.Sensor
	Publisher   mqtt.Publisher
	Tracker     *status.Tracker
	// Now defaults to time.Now.
	Now func() time.Time
}

// Monitor owns the agent's mutable state. The state types guard themselves,
// so Monitor methods are safe to call from the interrupt goroutine and from
// scheduled jobs at the same time.
type Monitor struct {
	cfg *config.Config
	loc *time.Location

	inputs      gpio.Reader
	client      collector.Client
	thermometer temperature.Sensor
	publisher   mqtt.Publisher
	tracker     *status.Tracker
	now         func() time.Time

	debouncer *logic.Debouncer
	door      *logic.DoorStateMachine
	motion    *logic.MotionRateLimiter
	gate      *logic.AlertGate
	scheduler *schedule.Scheduler
}

// New reads the inputs once to seed the door state and the debouncer, and
// returns a Monitor ready to process signals. A read failure is fatal.
func New(cfg *config.Config, deps Deps) (*Monitor, error) {
	if deps.Inputs == nil || deps.Collector == nil {
		return nil, errors.New("monitor: inputs and collector are required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location()

	levels, err := deps.Inputs.Read()
	if err != nil {
		return nil, fmt.Errorf("read initial levels: %w", err)
	}

	m := &Monitor{
		cfg:         cfg,
		loc:         loc,
		inputs:      deps.Inputs,
		client:      deps.Collector,
		thermometer: deps.Thermometer,
		publisher:   deps.Publisher,
		tracker:     deps.Tracker,
		now:         now,
		debouncer:   logic.NewDebouncer(cfg.Debounce),
		door:        logic.NewDoorStateMachine(logic.DoorState{IsOpen: levels.Door, LastChangedAt: now()}),
		motion:      logic.NewMotionRateLimiter(cfg.MotionRearm),
		gate: logic.NewAlertGate(loc, map[logic.Category]logic.AlertWindow{
			logic.CategoryDoor:   {MinHour: cfg.DoorAlert.Min, MaxHour: cfg.DoorAlert.Max},
			logic.CategoryMotion: {MinHour: cfg.MotionAlert.Min, MaxHour: cfg.MotionAlert.Max},
		}),
		scheduler: schedule.New(loc, now),
	}
	m.debouncer.Sync(logic.PinDoor, levels.Door)
	m.debouncer.Sync(logic.PinMotion, levels.Motion)
	if m.tracker != nil {
		m.tracker.SetDoor(m.door.CurrentState())
	}
	return m, nil
}

// DoorState returns the committed door state.
func (m *Monitor) DoorState() logic.DoorState {
	return m.door.CurrentState()
}

// Scheduler returns the job scheduler. Jobs are added by RegisterJobs.
func (m *Monitor) Scheduler() *schedule.Scheduler {
	return m.scheduler
}

// HandleSignal runs one raw signal through the debouncer and, when accepted,
// through the door or motion path. It blocks for the duration of any upload
// or alert it triggers.
func (m *Monitor) HandleSignal(ctx context.Context, sig logic.Signal) {
	tr, ok := m.debouncer.Accept(sig.Pin, sig.Level, sig.ObservedAt)
	if !ok {
		logger.DebugKV(ctx, "signal debounced", "pin", sig.Pin, "level", sig.Level)
		return
	}

	switch tr.Pin {
	case logic.PinDoor:
		ev, changed := m.door.Transition(tr.Level, tr.At)
		if !changed {
			logger.DebugKV(ctx, "door level matches state", "open", tr.Level)
			return
		}
		m.doorChanged(ctx, ev, reportAll)
	case logic.PinMotion:
		m.motionChanged(ctx, tr)
	default:
		logger.WarnKV(ctx, "signal on unknown pin", "pin", tr.Pin)
	}
}

// report selects which side effects of a door change the caller wants; a
// poll skips the one it is about to perform itself.
type report struct {
	upload bool
	alert  bool
}

var reportAll = report{upload: true, alert: true}

// doorChanged reports an accepted door transition: status upload, MQTT
// mirror, then the gated opening/closing alert.
func (m *Monitor) doorChanged(ctx context.Context, ev logic.DoorChangedEvent, r report) {
	logger.InfoKV(ctx, "door changed", "open", ev.IsOpen, "at", ev.At)
	if m.tracker != nil {
		m.tracker.RecordDoorChange(ev)
	}

	if r.upload {
		m.uploadDoor(ctx, collector.NewDoorStatus(ev.IsOpen, ev.At))
	}

	if m.publisher != nil {
		if err := m.publisher.PublishDoor(ev); err != nil {
			logger.WarnKV(ctx, "mqtt door publish failed", "error", err)
		}
	}

	if !r.alert {
		return
	}
	if !m.gate.IsActive(logic.CategoryDoor, ev.At) {
		logger.DebugKV(ctx, "door alert outside window", "hour", ev.At.In(m.loc).Hour())
		return
	}
	verb := "closing"
	if ev.IsOpen {
		verb = "opening"
	}
	m.alert(ctx, fmt.Sprintf("The garage door is %s @ %s", verb, m.clock(ev.At)))
}

// motionChanged handles an accepted motion level. Only HIGH levels can alert.
func (m *Monitor) motionChanged(ctx context.Context, tr logic.Transition) {
	if !tr.Level {
		logger.DebugKV(ctx, "motion cleared", "at", tr.At)
		return
	}

	alerted := m.gate.IsActive(logic.CategoryMotion, tr.At) && m.motion.TryAlert(tr.At)
	logger.InfoKV(ctx, "motion detected", "at", tr.At, "alert", alerted)
	if m.tracker != nil {
		m.tracker.RecordMotion(tr.At, !alerted)
	}
	if m.publisher != nil {
		if err := m.publisher.PublishMotion(tr.At, alerted); err != nil {
			logger.WarnKV(ctx, "mqtt motion publish failed", "error", err)
		}
	}
	if alerted {
		m.alert(ctx, "Movement detected in garage @ "+m.clock(tr.At))
	}
}

// reconcile commits a door level polled at now. A change found here is
// reported like an interrupt event, minus what r leaves out.
func (m *Monitor) reconcile(ctx context.Context, now time.Time, r report) (logic.DoorState, error) {
	levels, err := m.inputs.Read()
	if err != nil {
		return logic.DoorState{}, fmt.Errorf("read inputs: %w", err)
	}
	m.debouncer.Sync(logic.PinDoor, levels.Door)
	if ev, changed := m.door.Transition(levels.Door, now); changed {
		logger.InfoKV(ctx, "door change found by poll", "open", ev.IsOpen)
		m.doorChanged(ctx, ev, r)
	}
	return m.door.CurrentState(), nil
}

// CheckUploadDoor reads the door, reconciles the state machine and uploads
// the current state. The upload ignores the alert window.
func (m *Monitor) CheckUploadDoor(ctx context.Context) error {
	now := m.now()
	state, err := m.reconcile(ctx, now, report{alert: true})
	if err != nil {
		return err
	}
	return m.uploadDoor(ctx, collector.NewDoorStatus(state.IsOpen, now))
}

// CheckUploadTemp reads the 1-wire sensor and uploads the temperature in
// Fahrenheit.
func (m *Monitor) CheckUploadTemp(ctx context.Context) error {
	temp, err := readTemperature(m.thermometer)
	if err != nil {
		return err
	}
	err = m.client.UploadTemperature(ctx, temp)
	m.recordUpload(ctx, "temperature", err, "tempF", temp.TempF)
	return err
}

// UploadTemperature is CheckUploadTemp without a Monitor. It touches no GPIO
// line, so it can run while a daemon holds them.
func UploadTemperature(ctx context.Context, client collector.Uploader, sensor temperature.Sensor) error {
	temp, err := readTemperature(sensor)
	if err != nil {
		return err
	}
	err = client.UploadTemperature(ctx, temp)
	logUpload(ctx, "temperature", err, "tempF", temp.TempF)
	return err
}

func readTemperature(sensor temperature.Sensor) (collector.Temperature, error) {
	if sensor == nil {
		return collector.Temperature{}, errors.New("no temperature sensor configured")
	}
	c, err := sensor.ReadCelsius()
	if err != nil {
		return collector.Temperature{}, fmt.Errorf("read temperature: %w", err)
	}
	return collector.Temperature{TempF: temperature.CToF(c)}, nil
}

// CheckDoorStatusAndAlert reads the door and, when it is open inside the
// door alert window, dispatches a reminder. It sends at most one alert: a
// missed opening found here gets the reminder, not an opening alert.
func (m *Monitor) CheckDoorStatusAndAlert(ctx context.Context) error {
	now := m.now()
	state, err := m.reconcile(ctx, now, report{upload: true})
	if err != nil {
		return err
	}
	if !state.IsOpen {
		logger.DebugKV(ctx, "door closed, no reminder")
		return nil
	}
	if !m.gate.IsActive(logic.CategoryDoor, now) {
		logger.DebugKV(ctx, "door open outside alert window", "hour", now.In(m.loc).Hour())
		return nil
	}
	return m.alert(ctx, "The garage door is open @ "+m.clock(now))
}

func (m *Monitor) uploadDoor(ctx context.Context, ds collector.DoorStatus) error {
	err := m.client.UploadDoorStatus(ctx, ds)
	m.recordUpload(ctx, "door status", err, "isOpen", ds.IsOpen)
	return err
}

func (m *Monitor) recordUpload(ctx context.Context, what string, err error, kvs ...any) {
	if m.tracker != nil {
		m.tracker.RecordUpload(err)
	}
	logUpload(ctx, what, err, kvs...)
}

func logUpload(ctx context.Context, what string, err error, kvs ...any) {
	if err != nil {
		logger.WarnKV(ctx, what+" upload failed", append(kvs, "error", err)...)
		return
	}
	logger.InfoKV(ctx, what+" uploaded", kvs...)
}

func (m *Monitor) alert(ctx context.Context, message string) error {
	err := m.client.SendAlert(ctx, message)
	if m.tracker != nil {
		m.tracker.RecordAlert(err)
	}
	if err != nil {
		logger.WarnKV(ctx, "alert failed", "message", message, "error", err)
		return err
	}
	logger.InfoKV(ctx, "alert sent", "message", message)
	return nil
}

func (m *Monitor) clock(t time.Time) string {
	return t.In(m.loc).Format(TimeLayout)
}

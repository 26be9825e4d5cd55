// Package schedule runs named periodic jobs on cron cadences.
//
// The Scheduler only decides when jobs fire and records their bookkeeping; it
// performs no synchronization on behalf of the jobs, which may overlap with
// each other and with interrupt-driven handlers.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sweeney/garage-sensor/internal/logger"
)

// Action is the work performed by a job. A returned error is logged and
// recorded; it never affects later firings.
type Action func(ctx context.Context) error

// JobInfo is a point-in-time view of a registered job.
type JobInfo struct {
	Name      string
	Cadence   string
	LastRunAt time.Time // zero until the first firing
	NextRunAt time.Time
	LastErr   string
	Runs      int
}

type job struct {
	name     string
	cadence  string
	schedule cron.Schedule
	action   Action

	lastRunAt time.Time
	nextRunAt time.Time
	lastErr   error
	runs      int
}

// parser accepts 5-field expressions, 6-field expressions with a leading
// seconds field, and descriptors such as "@hourly" or "@every 15m".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var (
	// ErrDuplicateJob is returned when a job name is registered twice.
	ErrDuplicateJob = errors.New("job already registered")
	// ErrNilAction is returned when a job has no action.
	ErrNilAction = errors.New("job action is nil")
)

// Scheduler owns the list of named jobs.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*job
	loc  *time.Location
	now  func() time.Time
	wg   sync.WaitGroup

	// registered wakes Run when a job is added while it sleeps.
	registered chan struct{}
}

// New creates a Scheduler evaluating cadences in loc. now supplies the clock
// used by Register and Run; pass time.Now outside tests.
func New(loc *time.Location, now func() time.Time) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{loc: loc, now: now, registered: make(chan struct{}, 1)}
}

// ParseCadence validates a cadence expression.
func ParseCadence(cadence string) (cron.Schedule, error) {
	sched, err := parser.Parse(cadence)
	if err != nil {
		return nil, fmt.Errorf("parse cadence %q: %w", cadence, err)
	}
	return sched, nil
}

// Register adds a job. Its first firing is the cadence's next occurrence
// after the scheduler's current time. Jobs may be registered while Run is
// active.
func (s *Scheduler) Register(name, cadence string, action Action) error {
	if action == nil {
		return fmt.Errorf("%s: %w", name, ErrNilAction)
	}
	sched, err := ParseCadence(cadence)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.name == name {
			return fmt.Errorf("%s: %w", name, ErrDuplicateJob)
		}
	}

	s.jobs = append(s.jobs, &job{
		name:      name,
		cadence:   cadence,
		schedule:  sched,
		action:    action,
		nextRunAt: sched.Next(s.now().In(s.loc)),
	})

	select {
	case s.registered <- struct{}{}:
	default:
	}
	return nil
}

// due returns the jobs whose next run is at or before now and advances their
// next run past now. Missed occurrences collapse into a single firing.
func (s *Scheduler) due(now time.Time) []*job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.In(s.loc)
	var out []*job
	for _, j := range s.jobs {
		if j.nextRunAt.IsZero() || j.nextRunAt.After(now) {
			continue
		}
		j.lastRunAt = now
		j.runs++
		j.nextRunAt = j.schedule.Next(now)
		out = append(out, j)
	}
	return out
}

// Advance fires, synchronously and in registration order, every job due at
// now. It returns the names of the jobs fired. Tests drive the scheduler
// with Advance as a virtual clock.
func (s *Scheduler) Advance(ctx context.Context, now time.Time) []string {
	jobs := s.due(now)
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.name)
		s.fire(ctx, j)
	}
	return names
}

// Run fires jobs on the real clock until ctx is done. Each firing runs in its
// own goroutine. Jobs receive a context that is not cancelled with ctx, so an
// in-flight upload finishes (bounded by its own timeout); Run waits for them
// before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)
	defer s.wg.Wait()

	for {
		next, ok := s.nextWake()
		var wake <-chan time.Time
		var timer *time.Timer
		if ok {
			timer = time.NewTimer(next.Sub(s.now()))
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-s.registered:
			if timer != nil {
				timer.Stop()
			}
		case <-wake:
			for _, j := range s.due(s.now()) {
				s.wg.Add(1)
				go func(j *job) {
					defer s.wg.Done()
					s.fire(jobCtx, j)
				}(j)
			}
		}
	}
}

func (s *Scheduler) nextWake() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for _, j := range s.jobs {
		if j.nextRunAt.IsZero() {
			continue
		}
		if next.IsZero() || j.nextRunAt.Before(next) {
			next = j.nextRunAt
		}
	}
	return next, !next.IsZero()
}

// fire runs one invocation, isolating errors and panics to it.
func (s *Scheduler) fire(ctx context.Context, j *job) {
	ctx = logger.WithKV(ctx, "job", j.name)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return j.action(ctx)
	}()

	s.mu.Lock()
	j.lastErr = err
	s.mu.Unlock()

	if err != nil {
		logger.WarnKV(ctx, "scheduled job failed", "error", err)
		return
	}
	logger.DebugKV(ctx, "scheduled job done")
}

// Jobs returns the bookkeeping of all jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{
			Name:      j.name,
			Cadence:   j.cadence,
			LastRunAt: j.lastRunAt,
			NextRunAt: j.nextRunAt,
			Runs:      j.runs,
		}
		if j.lastErr != nil {
			info.LastErr = j.lastErr.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Job returns the bookkeeping of a single job.
func (s *Scheduler) Job(name string) (JobInfo, bool) {
	for _, info := range s.Jobs() {
		if info.Name == name {
			return info, true
		}
	}
	return JobInfo{}, false
}

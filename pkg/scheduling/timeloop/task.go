package timeloop

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

// Func is a task callback. now is the timestamp captured at the start of the
// pass that fired the task.
type Func func(ctx context.Context, now time.Time) error

// Task describes a unit of scheduled work.
type Task struct {
	// Name identifies the task for lookup, replacement and removal.
	Name string

	// Once runs the task a single time, then removes it. Overrides Count.
	Once bool

	// Interval gates firing: the task runs only when at least Interval has
	// passed since its last run. The first window must elapse before the
	// first run. Mutually exclusive with Cron.
	Interval time.Duration

	// Cron gates firing on a cron expression ("*/5 * * * * *", "@every 1m").
	// A leading seconds field is optional.
	Cron string

	// Delay postpones the first eligible run relative to registration.
	Delay time.Duration

	// Count limits the number of successful runs. Zero derives the limit
	// from Once (1) or leaves the task unlimited; negative means unlimited.
	Count int

	// KeepAlive exempts the task from pathname eviction and from duplicate
	// name rejection.
	KeepAlive bool

	// Replace removes an existing task with the same name instead of failing.
	Replace bool

	// Async hands the callback to the loop's worker pool instead of running
	// it inline in the pass.
	Async bool

	Fn Func
}

// Disposer unregisters every task of the batch it was returned for.
type Disposer func()

// TaskInfo is a read-only view of a registered task.
type TaskInfo struct {
	ID        string
	Name      string
	Remaining int // -1 when unlimited
	NextRun   time.Time
	Interval  time.Duration
	Cron      string
	KeepAlive bool
	Async     bool
	Pending   bool // queued for removal at the start of the next pass
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// entry is the loop-owned record behind a registered Task. All fields except
// task and id are guarded by the loop mutex.
type entry struct {
	id       ulid.ULID
	task     Task
	schedule cron.Schedule

	// count is the number of runs left, -1 when unlimited.
	count int

	// last is the eligibility time until an interval task first fires, then
	// the time of its last run. For cron tasks it holds the next run.
	last time.Time

	// inflight counts invocations started but not yet completed.
	inflight int
}

func newEntry(t Task, schedule cron.Schedule, now time.Time) *entry {
	e := &entry{
		id:       ulid.Make(),
		task:     t,
		schedule: schedule,
		count:    deriveCount(t),
		last:     now.Add(t.Delay),
	}
	if schedule != nil {
		e.last = schedule.Next(e.last)
	}
	return e
}

func deriveCount(t Task) int {
	switch {
	case t.Once:
		return 1
	case t.Count > 0:
		return t.Count
	default:
		return -1
	}
}

// due reports whether e fires in a pass at now, advancing its timestamps
// and reserving an in-flight slot when it does.
func (e *entry) due(now time.Time) bool {
	if e.count == 0 || (e.count > 0 && e.inflight >= e.count) {
		return false
	}

	switch {
	case e.task.Interval > 0:
		if e.last.IsZero() {
			e.last = now
			return false
		}
		if now.Sub(e.last) < e.task.Interval {
			return false
		}
		e.last = now
	case e.schedule != nil:
		if now.Before(e.last) {
			return false
		}
		e.last = e.schedule.Next(now)
	default:
		if now.Before(e.last) {
			return false
		}
	}

	e.inflight++
	return true
}

func (e *entry) info(pending bool) TaskInfo {
	next := e.last
	if e.task.Interval > 0 {
		next = e.last.Add(e.task.Interval)
	}
	return TaskInfo{
		ID:        e.id.String(),
		Name:      e.task.Name,
		Remaining: e.count,
		NextRun:   next,
		Interval:  e.task.Interval,
		Cron:      e.task.Cron,
		KeepAlive: e.task.KeepAlive,
		Async:     e.task.Async,
		Pending:   pending,
	}
}

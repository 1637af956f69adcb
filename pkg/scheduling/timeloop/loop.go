package timeloop

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	tlerrors "github.com/InkSha/time-loop/pkg/common/errors"
	"github.com/InkSha/time-loop/pkg/metrics"
	"github.com/InkSha/time-loop/pkg/scheduling/engine"
	"github.com/InkSha/time-loop/pkg/scheduling/workerpool"
)

// Loop is a repeating-task scheduler driven by an engine.Engine.
//
// The registry is only ever touched under mu. Task callbacks run with mu
// released, so they may register, unregister or change the pathname.
type Loop struct {
	name     string
	engine   engine.Engine
	clock    Clock
	location *time.Location
	logger   zerolog.Logger
	onError  func(name string, err error)
	errLog   *rate.Limiter
	workers  int
	extPool  workerpool.Pool

	instrumentation

	mu       sync.Mutex
	tasks    []*entry
	removes  map[int]struct{}
	pathname string

	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	pool    workerpool.Pool
	ownPool bool
}

// New creates a loop over a Timeout engine with the given delay between passes.
func New(delay time.Duration) *Loop {
	return NewWithConfig(Config{Delay: delay})
}

// NewWithMetrics creates a loop whose metrics are registered on reg.
func NewWithMetrics(delay time.Duration, name string, reg prometheus.Registerer) *Loop {
	return NewWithConfig(Config{
		Delay:   delay,
		Name:    name,
		Metrics: metrics.NewRegistry(reg),
	})
}

// NewWithConfig creates a loop with custom configuration.
func NewWithConfig(cfg Config) *Loop {
	cfg = cfg.withDefaults()

	l := &Loop{
		name:     cfg.Name,
		engine:   cfg.Engine,
		clock:    cfg.Clock,
		location: cfg.Location,
		logger:   cfg.Logger.With().Str("loop", cfg.Name).Logger(),
		onError:  cfg.ErrorHandler,
		errLog:   rate.NewLimiter(cfg.ErrorLogRate, cfg.ErrorLogBurst),
		workers:  cfg.Workers,
		extPool:  cfg.Pool,
		removes:  make(map[int]struct{}),
		pathname: cfg.Pathname,
	}
	if cfg.Metrics != nil {
		l.setRegistry(cfg.Metrics)
	}
	return l
}

// Name returns the loop's name.
func (l *Loop) Name() string {
	return l.name
}

func (l *Loop) now() time.Time {
	return l.clock.Now().In(l.location)
}

// Register adds tasks to the loop and returns a Disposer that unregisters
// every name in the batch.
//
// A name that is already registered is handled per task: Replace queues the
// existing task for removal, KeepAlive skips the incoming task, anything else
// fails the whole batch with a *errors.RepeatTaskError. A failed batch leaves
// the loop untouched.
func (l *Loop) Register(tasks ...Task) (Disposer, error) {
	schedules := make([]cron.Schedule, len(tasks))
	for i, t := range tasks {
		s, err := validateTask(t)
		if err != nil {
			l.observeRejected("invalid")
			return nil, err
		}
		schedules[i] = s
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	skip := make([]bool, len(tasks))
	replace := make([]bool, len(tasks))
	for i, t := range tasks {
		if !l.hasTaskLocked(t.Name) {
			continue
		}
		switch {
		case t.Replace:
			replace[i] = true
		case t.KeepAlive:
			skip[i] = true
		default:
			l.observeRejected("duplicate")
			return nil, tlerrors.NewRepeatTaskError(t.Name)
		}
	}

	// Replacements only ever remove tasks registered before this batch.
	for i, t := range tasks {
		if replace[i] {
			l.unregisterLocked(t.Name)
		}
	}

	now := l.now()
	names := make([]string, 0, len(tasks))
	for i, t := range tasks {
		names = append(names, t.Name)
		if skip[i] {
			l.logger.Debug().Str("task", t.Name).Msg("keep-alive task already registered, skipping")
			continue
		}

		e := newEntry(t, schedules[i], now)
		l.tasks = append(l.tasks, e)
		l.observeRegistered()
		l.logger.Debug().
			Str("task", t.Name).
			Str("id", e.id.String()).
			Int("count", e.count).
			Time("eligible", e.last).
			Msg("task registered")
	}
	l.observeSizeLocked()

	return func() {
		for _, name := range names {
			l.Unregister(name)
		}
	}, nil
}

// Unregister queues every task named name for removal at the start of the
// next pass. Unknown names are ignored.
func (l *Loop) Unregister(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unregisterLocked(name)
}

func (l *Loop) unregisterLocked(name string) int {
	marked := 0
	for i, e := range l.tasks {
		if e.task.Name != name {
			continue
		}
		l.removes[i] = struct{}{}
		marked++
	}
	if marked > 0 {
		l.logger.Debug().Str("task", name).Int("slots", marked).Msg("task queued for removal")
	}
	l.observeSizeLocked()
	return marked
}

// ChangePathname switches the loop's context. When the current pathname is
// non-empty and differs from pathname, every task without KeepAlive is queued
// for removal and pathname becomes current. From an empty pathname the call
// does nothing, including not recording pathname.
func (l *Loop) ChangePathname(pathname string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pathname == "" || l.pathname == pathname {
		return
	}

	previous := l.pathname
	l.pathname = pathname

	evicted := 0
	for i, e := range l.tasks {
		if e.task.KeepAlive {
			continue
		}
		l.removes[i] = struct{}{}
		evicted++
	}

	l.observeEvicted(evicted)
	l.observeSizeLocked()
	l.logger.Debug().
		Str("from", previous).
		Str("to", pathname).
		Int("evicted", evicted).
		Msg("pathname changed")
}

// Pathname returns the current context.
func (l *Loop) Pathname() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pathname
}

// HasTask reports whether a task named name is in the registry. Tasks queued
// for removal count as present until the next pass removes them.
func (l *Loop) HasTask(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasTaskLocked(name)
}

func (l *Loop) hasTaskLocked(name string) bool {
	for _, e := range l.tasks {
		if e.task.Name == name {
			return true
		}
	}
	return false
}

// Tasks returns a snapshot of the registry in execution order.
func (l *Loop) Tasks() []TaskInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	infos := make([]TaskInfo, 0, len(l.tasks))
	for i, e := range l.tasks {
		_, pending := l.removes[i]
		infos = append(infos, e.info(pending))
	}
	return infos
}

// Run starts the pass cycle. Calling Run on a running loop restarts the engine.
func (l *Loop) Run() {
	l.mu.Lock()
	if !l.running {
		l.ctx, l.cancel = context.WithCancel(context.Background())
		l.pool, l.ownPool = l.extPool, false
		if l.pool == nil {
			l.pool, l.ownPool = l.newPool(), true
		}
		l.running = true
	}
	l.mu.Unlock()

	l.logger.Debug().Msg("loop started")
	l.engine.Execute(l.pass)
}

func (l *Loop) newPool() workerpool.Pool {
	pool := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: l.workers,
		QueueSize:   DefaultQueueSize,
	})
	if r := l.registry(); r != nil {
		return workerpool.NewWithMetrics(pool, l.name, r)
	}
	return pool
}

// Close stops the pass cycle. The registry is kept, so a later Run resumes
// with the same tasks. The returned channel closes once Async callbacks
// running on the loop's own pool have returned.
func (l *Loop) Close() <-chan struct{} {
	l.engine.Close()

	l.mu.Lock()
	cancel, pool, own := l.cancel, l.pool, l.ownPool
	l.running = false
	l.cancel = nil
	l.pool = nil
	l.ownPool = false
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		l.logger.Debug().Msg("loop stopped")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if own && pool != nil {
			<-pool.Shutdown()
		}
	}()
	return done
}

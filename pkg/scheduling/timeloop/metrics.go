package timeloop

import (
	"sync/atomic"
	"time"

	"github.com/InkSha/time-loop/pkg/metrics"
)

var _ metrics.Instrumentable = (*Loop)(nil)

// instrumentation publishes loop activity to a metrics.Registry. The zero
// value is disabled.
type instrumentation struct {
	reg     atomic.Pointer[metrics.Registry]
	enabled atomic.Bool
}

func (in *instrumentation) setRegistry(r *metrics.Registry) {
	in.reg.Store(r)
	in.enabled.Store(true)
}

func (in *instrumentation) registry() *metrics.Registry {
	if !in.enabled.Load() {
		return nil
	}
	return in.reg.Load()
}

// EnableMetrics enables metrics collection. A nil config.Registry keeps the
// current registry, or falls back to metrics.DefaultRegistry.
func (l *Loop) EnableMetrics(config metrics.Config) error {
	switch {
	case config.Registry != nil:
		r, err := metrics.NewRegistrySafe(config)
		if err != nil {
			return err
		}
		l.reg.Store(r)
	case l.reg.Load() == nil:
		l.reg.Store(metrics.DefaultRegistry)
	}
	l.enabled.Store(config.Enabled)
	return nil
}

// DisableMetrics disables metrics collection.
func (l *Loop) DisableMetrics() {
	l.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (l *Loop) MetricsEnabled() bool {
	return l.registry() != nil
}

func (l *Loop) observeRegistered() {
	if r := l.registry(); r != nil {
		r.TasksRegistered.WithLabelValues(l.name).Inc()
	}
}

func (l *Loop) observeRejected(reason string) {
	if r := l.registry(); r != nil {
		r.TasksRejected.WithLabelValues(l.name, reason).Inc()
	}
}

func (l *Loop) observeExecuted() {
	if r := l.registry(); r != nil {
		r.TasksExecuted.WithLabelValues(l.name).Inc()
	}
}

func (l *Loop) observeCompleted() {
	if r := l.registry(); r != nil {
		r.TasksCompleted.WithLabelValues(l.name).Inc()
	}
}

func (l *Loop) observeFailed() {
	if r := l.registry(); r != nil {
		r.TasksFailed.WithLabelValues(l.name).Inc()
	}
}

func (l *Loop) observeDuration(d time.Duration) {
	if r := l.registry(); r != nil {
		r.TaskExecutionDuration.WithLabelValues(l.name).Observe(d.Seconds())
	}
}

func (l *Loop) observeRemoved(n int) {
	if r := l.registry(); r != nil && n > 0 {
		r.TasksRemoved.WithLabelValues(l.name).Add(float64(n))
	}
}

func (l *Loop) observeEvicted(n int) {
	if r := l.registry(); r != nil && n > 0 {
		r.TasksEvicted.WithLabelValues(l.name).Add(float64(n))
	}
}

func (l *Loop) observePass(d time.Duration) {
	if r := l.registry(); r != nil {
		r.Passes.WithLabelValues(l.name).Inc()
		r.PassDuration.WithLabelValues(l.name).Observe(d.Seconds())
	}
}

// observeSizeLocked must be called with l.mu held.
func (l *Loop) observeSizeLocked() {
	if r := l.registry(); r != nil {
		r.RegistrySize.WithLabelValues(l.name).Set(float64(len(l.tasks)))
		r.PendingRemovals.WithLabelValues(l.name).Set(float64(len(l.removes)))
	}
}

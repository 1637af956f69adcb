package workerpool

import (
	"context"
	"sync/atomic"

	"github.com/InkSha/time-loop/pkg/metrics"
)

// MetricsPool wraps a worker Pool with Prometheus gauges.
type MetricsPool struct {
	pool     Pool
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

// NewWithMetrics wraps pool so its size, active workers and queue depth are
// published under pool_name=name.
func NewWithMetrics(pool Pool, name string, registry *metrics.Registry) *MetricsPool {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	mp := &MetricsPool{
		pool: pool,
		name: name,
	}
	mp.registry.Store(registry)
	mp.enabled.Store(true)
	mp.updateMetrics()
	return mp
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	if !mp.enabled.Load() {
		return
	}

	registry := mp.registry.Load()
	registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

func (mp *MetricsPool) Submit(task Task) error {
	return mp.SubmitWithContext(context.Background(), task)
}

func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return mp.pool.SubmitWithContext(ctx, nil)
	}
	wrapped := TaskFunc(func(ctx context.Context) error {
		defer mp.updateMetrics()
		return task.Execute(ctx)
	})

	err := mp.pool.SubmitWithContext(ctx, wrapped)
	mp.updateMetrics()
	return err
}

func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

func (mp *MetricsPool) QueueSize() int {
	return mp.pool.QueueSize()
}

func (mp *MetricsPool) ActiveWorkers() int {
	return mp.pool.ActiveWorkers()
}

func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		r, err := metrics.NewRegistrySafe(config)
		if err != nil {
			return err
		}
		mp.registry.Store(r)
	}
	mp.enabled.Store(config.Enabled)
	mp.updateMetrics()
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled.Load()
}

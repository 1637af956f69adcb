// Package metrics provides Prometheus instrumentation for timeloop components.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metric instances for timeloop components.
type Registry struct {
	// Loop Metrics
	Passes          *prometheus.CounterVec
	PassDuration    *prometheus.HistogramVec
	RegistrySize    *prometheus.GaugeVec
	PendingRemovals *prometheus.GaugeVec

	// Task Metrics
	TasksRegistered       *prometheus.CounterVec
	TasksRejected         *prometheus.CounterVec
	TasksExecuted         *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TasksRemoved          *prometheus.CounterVec
	TasksEvicted          *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec

	// Worker Pool Metrics
	WorkerPoolSize   *prometheus.GaugeVec
	WorkerPoolActive *prometheus.GaugeVec
	WorkerPoolQueued *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by timeloop components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Enabled: true, Registry: reg})
}

// NewRegistryWithConfig creates a metrics registry honoring the namespace and
// constant labels of cfg. It panics if the collectors cannot be registered;
// use NewRegistrySafe to get the error instead.
func NewRegistryWithConfig(cfg Config) *Registry {
	r, err := NewRegistrySafe(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistrySafe creates a metrics registry like NewRegistryWithConfig.
// Collectors already registered with identical descriptors are reused, so
// several registries built from the same config share their series.
func NewRegistrySafe(cfg Config) (*Registry, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	b := &builder{reg: reg}

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return register(b, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels))
	}
	gauge := func(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
		return register(b, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels))
	}
	histogram := func(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
		return register(b, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			Buckets:     prometheus.DefBuckets,
			ConstLabels: cfg.Labels,
		}, labels))
	}

	r := &Registry{
		Passes:          counter("loop", "passes_total", "Total number of scheduling passes", "loop_name"),
		PassDuration:    histogram("loop", "pass_duration_seconds", "Time spent in one scheduling pass", "loop_name"),
		RegistrySize:    gauge("loop", "tasks", "Number of tasks in the registry", "loop_name"),
		PendingRemovals: gauge("loop", "pending_removals", "Number of registry slots queued for removal", "loop_name"),

		TasksRegistered:       counter("task", "registered_total", "Total number of tasks registered", "loop_name"),
		TasksRejected:         counter("task", "rejected_total", "Total number of registration batches rejected", "loop_name", "reason"),
		TasksExecuted:         counter("task", "executed_total", "Total number of task callbacks invoked", "loop_name"),
		TasksCompleted:        counter("task", "completed_total", "Total number of task callbacks that succeeded", "loop_name"),
		TasksFailed:           counter("task", "failed_total", "Total number of task callbacks that failed", "loop_name"),
		TasksRemoved:          counter("task", "removed_total", "Total number of tasks removed from the registry", "loop_name"),
		TasksEvicted:          counter("task", "evicted_total", "Total number of tasks marked for removal by a pathname change", "loop_name"),
		TaskExecutionDuration: histogram("task", "duration_seconds", "Time spent executing task callbacks", "loop_name"),

		WorkerPoolSize:   gauge("workerpool", "size", "Current worker pool size", "pool_name"),
		WorkerPoolActive: gauge("workerpool", "active_workers", "Number of active workers", "pool_name"),
		WorkerPoolQueued: gauge("workerpool", "queued_tasks", "Number of queued tasks", "pool_name"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return r, nil
}

// builder records the first registration failure.
type builder struct {
	reg prometheus.Registerer
	err error
}

func register[C prometheus.Collector](b *builder, c C) C {
	if b.err != nil {
		return c
	}
	err := b.reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	b.err = fmt.Errorf("metrics: register collector: %w", err)
	return c
}

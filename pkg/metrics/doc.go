// Package metrics provides Prometheus instrumentation for timeloop components.
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	loop := timeloop.NewWithMetrics(time.Second, "ui")
//
// or by passing a Registry through the loop configuration:
//
//	reg := prometheus.NewRegistry()
//	loop := timeloop.NewWithConfig(timeloop.Config{
//		Name:    "ui",
//		Metrics: metrics.NewRegistry(reg),
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Available Metrics
//
// Loop:
//
//   - timeloop_loop_passes_total: Total number of scheduling passes
//   - timeloop_loop_pass_duration_seconds: Time spent in one scheduling pass
//   - timeloop_loop_tasks: Number of tasks in the registry
//   - timeloop_loop_pending_removals: Registry slots queued for removal
//
// Tasks:
//
//   - timeloop_task_registered_total: Tasks registered
//   - timeloop_task_rejected_total: Registration batches rejected, by reason
//   - timeloop_task_executed_total: Task callbacks invoked
//   - timeloop_task_completed_total: Task callbacks that succeeded
//   - timeloop_task_failed_total: Task callbacks that returned an error or panicked
//   - timeloop_task_removed_total: Tasks spliced out of the registry
//   - timeloop_task_evicted_total: Tasks marked for removal by a pathname change
//   - timeloop_task_duration_seconds: Task callback run time
//
// Worker pool (async tasks):
//
//   - timeloop_workerpool_size, timeloop_workerpool_active_workers,
//     timeloop_workerpool_queued_tasks
//
// # Labels
//
//   - loop_name: User-provided name for the loop instance
//   - pool_name: User-provided name for the worker pool instance
//   - reason: "duplicate" or "invalid" for rejected registrations
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	loop.DisableMetrics()
//	loop.EnableMetrics(metrics.Config{Enabled: true, Registry: reg})
//	enabled := loop.MetricsEnabled()
package metrics

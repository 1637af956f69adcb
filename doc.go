/*
Package timeloop provides a cooperative scheduler that runs many repeating
tasks from a single timer.

Scheduling (pkg/scheduling):
  - engine: Tick sources (a re-armed timeout and a manual engine for tests)
  - timeloop: Named task registry with once, count, interval and cron gating
  - workerpool: Background execution for async tasks

Support packages:
  - metrics: Prometheus instrumentation shared by the loop and the pool
  - logging: zerolog setup for the timeloop command
  - common/errors, common/validation: Error types and field validation

Example usage:

	import "github.com/InkSha/time-loop/pkg/scheduling/timeloop"

	loop := timeloop.NewWithConfig(timeloop.Config{Delay: time.Second, Pathname: "/home"})

	dispose, err := loop.Register(
		timeloop.Task{Name: "poll", Interval: 5 * time.Second, Fn: poll},
		timeloop.Task{Name: "report", Cron: "@every 15m", Async: true, Fn: report},
	)
	if err != nil {
		return err
	}
	defer dispose()

	loop.Run()
	defer func() { <-loop.Close() }()

The cmd/timeloop command runs a loop described by a YAML file and can serve
its metrics over HTTP.
*/
package timeloop

/*
Package scheduling groups the components that decide when tasks run.

  - engine: Drives passes. Timeout waits a fixed delay after each pass
    completes; Manual ticks only when told to.
  - timeloop: Holds the task registry and evaluates it on every pass.
  - workerpool: Runs async tasks off the pass goroutine.

A loop needs only an engine:

	loop := timeloop.NewWithConfig(timeloop.Config{Engine: engine.NewTimeout(time.Second)})
	loop.Run()
	defer func() { <-loop.Close() }()

All components are safe for concurrent use.
*/
package scheduling

/*
Package engine provides tick sources: the periodic execution primitive that
drives a timeloop.Loop.

An Engine knows nothing about tasks. Once started with Execute it invokes a
single zero-argument callback over and over, and Close stops it.

	e := engine.NewTimeout(500 * time.Millisecond)
	e.Execute(func() {
		fmt.Println("tick")
	})
	defer e.Close()

Cadence:

Timeout schedules each invocation only after the previous callback has
returned, so the real spacing between two invocations is the configured
delay plus the callback's own run time. A slow callback pushes every later
tick back; nothing is skipped or run concurrently to catch up.

Testing:

Manual is an Engine that only fires when Tick is called. Pair it with a fake
clock to step a loop deterministically:

	m := engine.NewManual()
	loop := timeloop.NewWithConfig(timeloop.Config{Engine: m, Clock: clock})
	loop.Run()
	m.Tick()
*/
package engine

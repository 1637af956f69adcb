/*
Package timeloop provides a cooperative repeating-task scheduler.

A Loop owns an ordered registry of named tasks. An engine.Engine calls the
loop back periodically; each call is a pass that first removes the tasks
queued for removal, then runs every task that is due, in registration order.

Basic Usage:

	loop := timeloop.New(time.Second)
	loop.Run()
	defer func() { <-loop.Close() }()

	dispose, err := loop.Register(timeloop.Task{
		Name:     "refresh",
		Interval: 5 * time.Second,
		Fn: func(ctx context.Context, now time.Time) error {
			return refresh(ctx)
		},
	})
	if err != nil {
		return err
	}
	defer dispose()

Task Kinds:

	// Every pass
	timeloop.Task{Name: "poll", Fn: poll}

	// Once, two seconds from now
	timeloop.Task{Name: "hint", Once: true, Delay: 2 * time.Second, Fn: showHint}

	// Gated by interval or by a cron expression
	timeloop.Task{Name: "sync", Interval: time.Minute, Fn: sync}
	timeloop.Task{Name: "report", Cron: "@every 15m", Fn: report}

	// Three successful runs, then removed
	timeloop.Task{Name: "retry", Count: 3, Fn: retry}

Removal is lazy. Unregister, a Disposer, an exhausted count and a pathname
change only queue registry slots; the slots are spliced out at the start of
the next pass. HasTask keeps reporting a queued task until then.

Name Conflicts:

Registering a name that is already present fails with *errors.RepeatTaskError
unless the incoming task sets Replace (the old task is queued for removal) or
KeepAlive (the incoming task is skipped). A failed batch registers nothing.

Pathname Eviction:

ChangePathname evicts every task without KeepAlive when the loop already has
a non-empty pathname that differs from the new one. A loop created with an
empty pathname stays inert: seed it with Config.Pathname to enable eviction.

Callbacks:

Task callbacks run with the loop unlocked and may call back into it. A
callback that returns an error or panics is reported through the logger,
metrics and Config.ErrorHandler; the pass carries on and the run does not
count against the task's limit. Async tasks run on a worker pool, so a slow
one does not delay the rest of the pass.
*/
package timeloop

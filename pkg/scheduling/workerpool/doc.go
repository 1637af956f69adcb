/*
Package workerpool runs task callbacks on a fixed set of goroutines.

The timeloop package uses a pool for tasks marked Async: their callbacks are
handed to the pool so one slow callback does not hold up the rest of a pass.

Basic usage:

	pool := workerpool.NewWithConfig(workerpool.Config{
		WorkerCount: 4,
		QueueSize:   64,
		OnTaskComplete: func(r workerpool.Result) {
			if r.Error != nil {
				log.Printf("task failed: %v", r.Error)
			}
		},
	})
	defer func() { <-pool.Shutdown() }()

	_ = pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return nil
	}))

Panics inside a task are recovered, passed to Config.PanicHandler and
reported as the task's error. Shutdown stops accepting tasks, drains the
queue and closes the returned channel once every worker has exited.
*/
package workerpool

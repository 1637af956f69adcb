package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	tlerrors "github.com/InkSha/time-loop/pkg/common/errors"
)

// Submit adds a task to the pool for execution with context.Background().
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Holding the read lock keeps Shutdown from closing the queue under us.
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.isShutdown {
		return fmt.Errorf("cannot submit task: %w", tlerrors.ErrClosed)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: context canceled: %w", ctx.Err())
	default:
	}

	select {
	case p.jobs <- job{task: task, ctx: ctx}:
		atomic.AddInt64(&p.totalSubmitted, 1)
		return nil
	case <-p.shutdownCh:
		return fmt.Errorf("cannot submit task: %w", tlerrors.ErrClosed)
	case <-ctx.Done():
		return fmt.Errorf("cannot submit task: context canceled: %w", ctx.Err())
	}
}

func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		close(p.shutdownCh)

		p.mu.Lock()
		p.isShutdown = true
		close(p.jobs)
		p.mu.Unlock()

		go func() {
			p.workerWg.Wait()
			close(p.done)
		}()
	})

	return p.done
}

func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

func (p *workerPool) QueueSize() int {
	return len(p.jobs)
}

func (p *workerPool) ActiveWorkers() int {
	return int(atomic.LoadInt32(&p.activeWorkers))
}

func (p *workerPool) TotalSubmitted() int64 {
	return atomic.LoadInt64(&p.totalSubmitted)
}

func (p *workerPool) TotalCompleted() int64 {
	return atomic.LoadInt64(&p.totalCompleted)
}

// work drains the queue until it is closed by Shutdown.
func (p *workerPool) work(id int) {
	defer p.workerWg.Done()

	for j := range p.jobs {
		p.execute(id, j)
	}
}

func (p *workerPool) execute(id int, j job) {
	atomic.AddInt32(&p.activeWorkers, 1)
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(j.task, r)
			}
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
		}

		atomic.AddInt32(&p.activeWorkers, -1)
		atomic.AddInt64(&p.totalCompleted, 1)

		if p.config.OnTaskComplete != nil {
			p.config.OnTaskComplete(Result{
				Task:     j.task,
				Error:    err,
				Duration: time.Since(start),
				WorkerID: id,
			})
		}
	}()

	ctx := j.ctx
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()
	}

	err = j.task.Execute(ctx)
}

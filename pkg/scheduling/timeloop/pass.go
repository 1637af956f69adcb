package timeloop

import (
	"context"
	"fmt"
	"slices"
	"time"

	tlerrors "github.com/InkSha/time-loop/pkg/common/errors"
	"github.com/InkSha/time-loop/pkg/scheduling/workerpool"
)

// pass is the engine callback: apply queued removals, then fire every due task.
func (l *Loop) pass() {
	start := time.Now()

	l.mu.Lock()
	removed := l.applyRemovalsLocked()
	now := l.now()
	var due []*entry
	for _, e := range l.tasks {
		if e.due(now) {
			due = append(due, e)
		}
	}
	ctx, pool := l.ctx, l.pool
	l.observeSizeLocked()
	l.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	for _, e := range due {
		l.fire(ctx, pool, e, now)
	}

	l.observePass(time.Since(start))
	if removed > 0 || len(due) > 0 {
		l.logger.Trace().Int("removed", removed).Int("fired", len(due)).Msg("pass")
	}
}

// applyRemovalsLocked splices out every queued index, highest first so the
// remaining indices stay valid.
func (l *Loop) applyRemovalsLocked() int {
	if len(l.removes) == 0 {
		return 0
	}

	indices := make([]int, 0, len(l.removes))
	for i := range l.removes {
		indices = append(indices, i)
	}
	slices.Sort(indices)
	slices.Reverse(indices)

	removed := 0
	for _, i := range indices {
		if i >= len(l.tasks) {
			continue
		}
		l.logger.Debug().Str("task", l.tasks[i].task.Name).Str("id", l.tasks[i].id.String()).Msg("task removed")
		l.tasks = slices.Delete(l.tasks, i, i+1)
		removed++
	}
	clear(l.removes)

	l.observeRemoved(removed)
	return removed
}

func (l *Loop) fire(ctx context.Context, pool workerpool.Pool, e *entry, now time.Time) {
	l.observeExecuted()

	if !e.task.Async || pool == nil {
		l.complete(e, l.invoke(ctx, e, now))
		return
	}

	err := pool.SubmitWithContext(ctx, workerpool.TaskFunc(func(ctx context.Context) error {
		l.complete(e, l.invoke(ctx, e, now))
		return nil
	}))
	if err != nil {
		l.mu.Lock()
		e.inflight--
		l.mu.Unlock()
		l.logger.Warn().Err(err).Str("task", e.task.Name).Msg("async task not submitted")
	}
}

// invoke runs the callback, turning a panic into an error.
func (l *Loop) invoke(ctx context.Context, e *entry, now time.Time) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = tlerrors.NewOperationError(module, e.task.Name, fmt.Errorf("%v", r)).
				WithContext("recovered panic")
		}
		l.observeDuration(time.Since(start))
	}()

	return e.task.Fn(ctx, now)
}

// complete settles one run. Only successful runs consume the count; the
// removal of an exhausted task is queued for the next pass.
func (l *Loop) complete(e *entry, err error) {
	l.mu.Lock()
	e.inflight--
	if err == nil {
		if e.count > 0 {
			e.count--
		}
		if e.count == 0 {
			l.unregisterLocked(e.task.Name)
		}
	}
	l.mu.Unlock()

	if err == nil {
		l.observeCompleted()
		return
	}

	l.observeFailed()
	if l.errLog.Allow() {
		l.logger.Error().Err(err).Str("task", e.task.Name).Str("id", e.id.String()).Msg("task failed")
	}
	if l.onError != nil {
		l.onError(e.task.Name, err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/InkSha/time-loop/pkg/scheduling/timeloop"
)

var errConfiguredFailure = errors.New("configured failure")

// buildTasks turns the configured tasks and routes into loop tasks. Each
// configured task logs its message; each route changes the loop pathname.
func buildTasks(cfg *FileConfig, loop *timeloop.Loop, logger zerolog.Logger) []timeloop.Task {
	tasks := make([]timeloop.Task, 0, len(cfg.Tasks)+len(cfg.Routes))

	for _, tc := range cfg.Tasks {
		tc := tc
		tasks = append(tasks, timeloop.Task{
			Name:      tc.Name,
			Once:      tc.Once,
			Interval:  tc.Interval,
			Cron:      tc.Cron,
			Delay:     tc.Delay,
			Count:     tc.Count,
			KeepAlive: tc.KeepAlive,
			Replace:   tc.Replace,
			Async:     tc.Async,
			Fn: func(_ context.Context, now time.Time) error {
				logger.Info().
					Str("task", tc.Name).
					Str("pathname", loop.Pathname()).
					Time("at", now).
					Msg(tc.Message)
				if tc.Fail {
					return errConfiguredFailure
				}
				return nil
			},
		})
	}

	for i, rc := range cfg.Routes {
		rc := rc
		tasks = append(tasks, timeloop.Task{
			Name:      fmt.Sprintf("route#%d:%s", i, rc.Pathname),
			Once:      true,
			Delay:     rc.After,
			KeepAlive: true,
			Fn: func(context.Context, time.Time) error {
				logger.Info().
					Str("from", loop.Pathname()).
					Str("to", rc.Pathname).
					Msg("navigating")
				loop.ChangePathname(rc.Pathname)
				return nil
			},
		})
	}

	return tasks
}

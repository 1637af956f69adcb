package timeloop

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/InkSha/time-loop/pkg/metrics"
	"github.com/InkSha/time-loop/pkg/scheduling/engine"
	"github.com/InkSha/time-loop/pkg/scheduling/workerpool"
)

const (
	// DefaultName labels loops that were not given a name.
	DefaultName = "timeloop"

	// DefaultWorkers is the size of the pool created for Async tasks.
	DefaultWorkers = 4

	// DefaultQueueSize bounds the Async task queue of the owned pool.
	DefaultQueueSize = 64
)

// Config holds loop configuration.
type Config struct {
	// Engine drives the passes. If nil, a Timeout engine with Delay is used.
	Engine engine.Engine

	// Delay between the end of one pass and the start of the next
	// (default: engine.DefaultDelay). Ignored when Engine is set.
	Delay time.Duration

	// Clock supplies pass timestamps (default: SystemClock).
	Clock Clock

	// Location is used to evaluate cron expressions (default: time.Local).
	Location *time.Location

	// Name labels log lines and metrics (default: "timeloop").
	Name string

	// Pathname is the initial context. A loop that starts with an empty
	// pathname never evicts on ChangePathname.
	Pathname string

	// Pool runs Async tasks. If nil, the loop creates its own pool of
	// Workers goroutines on Run and shuts it down on Close.
	Pool    workerpool.Pool
	Workers int

	// Logger receives structured logs (default: disabled).
	Logger *zerolog.Logger

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Registry

	// ErrorHandler is called with every failed task run.
	ErrorHandler func(name string, err error)

	// ErrorLogRate and ErrorLogBurst throttle failure logging
	// (default: 1 per second, burst 5).
	ErrorLogRate  rate.Limit
	ErrorLogBurst int
}

func (c Config) withDefaults() Config {
	if c.Engine == nil {
		c.Engine = engine.NewTimeout(c.Delay)
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if c.ErrorLogRate <= 0 {
		c.ErrorLogRate = rate.Every(time.Second)
	}
	if c.ErrorLogBurst <= 0 {
		c.ErrorLogBurst = 5
	}
	return c
}

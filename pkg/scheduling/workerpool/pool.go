package workerpool

import (
	"context"
	"sync"
	"time"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result describes one finished task.
type Result struct {
	Task     Task
	Error    error
	Duration time.Duration
	WorkerID int
}

// Pool executes submitted tasks on a fixed set of worker goroutines.
type Pool interface {
	// Submit queues a task, blocking while the queue is full.
	Submit(task Task) error

	// SubmitWithContext queues a task. The context bounds the wait for a
	// queue slot and is handed to the task's Execute.
	SubmitWithContext(ctx context.Context, task Task) error

	// Shutdown stops accepting tasks, lets queued tasks finish and returns
	// a channel closed once every worker has exited.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the number of tasks waiting for a worker.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks accepted by the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks that finished.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the capacity of the task queue. 0 means a submit blocks
	// until a worker picks the task up.
	QueueSize int

	// TaskTimeout bounds each task's execution. Zero means no timeout.
	TaskTimeout time.Duration

	// PanicHandler is called when a task panics. The panic is always
	// recovered and reported as the task's error.
	PanicHandler func(task Task, recovered interface{})

	// OnTaskComplete is called after every task, successful or not.
	OnTaskComplete func(result Result)
}

type job struct {
	task Task
	ctx  context.Context
}

type workerPool struct {
	config Config

	jobs         chan job
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	mu         sync.RWMutex
	isShutdown bool

	activeWorkers  int32
	totalSubmitted int64
	totalCompleted int64

	workerWg sync.WaitGroup
}

// New creates a new worker pool with the specified number of workers and queue size.
func New(workerCount, queueSize int) Pool {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
func NewWithConfig(config Config) Pool {
	if config.WorkerCount <= 0 {
		panic("worker count must be positive")
	}
	if config.QueueSize < 0 {
		panic("queue size must be >= 0")
	}

	pool := &workerPool{
		config:     config,
		jobs:       make(chan job, config.QueueSize),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		pool.workerWg.Add(1)
		go pool.work(i)
	}

	return pool
}

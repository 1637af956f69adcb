package engine

import (
	"sync"
	"time"

	"github.com/InkSha/time-loop/pkg/common/validation"
)

// DefaultDelay is the delay used when a non-positive delay is configured.
const DefaultDelay = time.Second

// Timeout is an Engine that re-arms a one-shot timer after every callback.
type Timeout struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	running bool
}

// NewTimeout creates a Timeout engine. Non-positive delays fall back to DefaultDelay.
func NewTimeout(delay time.Duration) *Timeout {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Timeout{delay: delay}
}

// NewTimeoutSafe creates a Timeout engine, rejecting non-positive delays.
func NewTimeoutSafe(delay time.Duration) (*Timeout, error) {
	if err := validation.ValidatePositiveDuration("engine", "delay", delay); err != nil {
		return nil, err
	}
	return &Timeout{delay: delay}, nil
}

// Delay returns the pause between the end of one callback and the start of the next.
func (t *Timeout) Delay() time.Duration {
	return t.delay
}

// Running reports whether a callback chain is active.
func (t *Timeout) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timeout) Execute(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	t.running = true
	t.armLocked(t.gen, callback)
}

func (t *Timeout) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// armLocked schedules the next invocation for generation gen. A timer left
// over from an earlier Execute sees a newer generation and does nothing.
func (t *Timeout) armLocked(gen uint64, callback func()) {
	t.timer = time.AfterFunc(t.delay, func() {
		if !t.live(gen) {
			return
		}

		callback()

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.running && t.gen == gen {
			t.armLocked(gen, callback)
		}
	})
}

func (t *Timeout) live(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.gen == gen
}

func (t *Timeout) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.running = false
}

package engine

import "sync"

// Manual is an Engine that invokes its callback only when Tick is called.
type Manual struct {
	mu       sync.Mutex
	callback func()
	running  bool
	ticks    int
}

// NewManual creates a stopped Manual engine.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Execute(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = callback
	m.running = true
}

func (m *Manual) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = nil
	m.running = false
}

// Tick runs the callback once on the calling goroutine. It returns false
// without doing anything when the engine is not running.
func (m *Manual) Tick() bool {
	m.mu.Lock()
	callback, running := m.callback, m.running
	m.mu.Unlock()

	if !running {
		return false
	}

	callback()

	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()
	return true
}

// Running reports whether Execute has been called since the last Close.
func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Ticks returns how many callbacks have completed.
func (m *Manual) Ticks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

package engine

// Engine repeatedly invokes a callback until it is closed.
type Engine interface {
	// Execute starts invoking callback. A running engine is stopped first,
	// so at most one callback chain is live at a time.
	Execute(callback func())

	// Close stops invocation and releases the timer. Safe to call when
	// nothing is running and safe to call more than once.
	Close()
}

// Package clock provides the timer capability used by the debounce core.
// The real implementation wraps the runtime timer facility.
// The fake implementation is advanced manually so tests never sleep.
package clock

import "time"

// Clock schedules single-shot delayed callbacks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed.
	// The returned Timer cancels the call if it has not started yet.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable handle to a scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// was stopped before it started. Stopping twice is a no-op.
	Stop() bool
}

// Real is a Clock backed by the time package.
type Real struct{}

// NewReal returns the wall clock.
func NewReal() Real {
	return Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

package debounce

import (
	"log"

	"github.com/sweeney/debounced/internal/clock"
)

// Debouncer wraps an action so that bursts of calls collapse into a bounded
// number of invocations. Scheduling follows the same rules as Controller,
// applied to the latest call arguments.
//
// The action is not serialized against Flush: a timer fire and a Flush
// may run the action concurrently, so the action must be safe for that.
type Debouncer[A any] struct {
	sched   *scheduler[A]
	action  func(A) error
	onError func(error)
	calls   *dispatcher[A]
}

// ErrorHandler receives errors returned by the action on the timer path.
type ErrorHandler func(error)

// NewDebouncer creates a Debouncer for action. Errors from timer-driven
// invocations go to onError; a nil onError logs them.
func NewDebouncer[A any](clk clock.Clock, action func(A) error, policy Policy, onError ErrorHandler) (*Debouncer[A], error) {
	if clk == nil {
		return nil, ErrNilClock
	}
	if action == nil {
		return nil, ErrNilAction
	}
	if policy.Immediate {
		return nil, ErrImmediateUnsupported
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if onError == nil {
		onError = logActionError
	}

	d := &Debouncer[A]{
		action:  action,
		onError: onError,
	}
	d.calls = newDispatcher(d.invoke)
	d.sched = newScheduler(clk, policy, d.apply, d.calls.drain)
	return d, nil
}

// Call schedules the action with args per the policy.
func (d *Debouncer[A]) Call(args A) {
	d.sched.observe(args, false)
}

// Cancel clears both timers without invoking the action. Invocations that
// were claimed by a timer but have not started yet are dropped too.
// Calling Cancel repeatedly is a no-op.
func (d *Debouncer[A]) Cancel() {
	d.sched.cancel()
	d.calls.reset()
}

// Flush clears both timers and invokes the action synchronously with the
// latest pending args. Without pending args it does nothing.
func (d *Debouncer[A]) Flush() error {
	args, ok := d.sched.flush(nil, false)
	if !ok {
		return nil
	}
	return d.action(args)
}

// FlushWith clears both timers and invokes the action synchronously with args.
// After Close it does nothing.
func (d *Debouncer[A]) FlushWith(args A) error {
	args, ok := d.sched.flush(&args, false)
	if !ok {
		return nil
	}
	return d.action(args)
}

// Pending reports whether either timer is armed.
func (d *Debouncer[A]) Pending() bool {
	return d.sched.pending()
}

// Close cancels everything and ignores later calls.
func (d *Debouncer[A]) Close() {
	d.sched.close()
	d.calls.reset()
}

// apply runs with sched.mu held.
func (d *Debouncer[A]) apply(kind Kind, args A, _ bool) {
	if kind.Emits() {
		d.calls.push(args)
	}
}

func (d *Debouncer[A]) invoke(args A) {
	if err := d.action(args); err != nil {
		d.onError(err)
	}
}

func logActionError(err error) {
	log.Printf("debounce: action failed: %v", err)
}

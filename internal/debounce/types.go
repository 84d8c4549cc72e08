// Package debounce contains the timer-coordination core: a value controller
// and a callback debouncer sharing one leading/trailing/maxWait state machine.
// Time is always injected through clock.Clock.
package debounce

import (
	"errors"
	"time"
)

// Configuration errors.
var (
	ErrNegativeDelay        = errors.New("debounce: delay must not be negative")
	ErrNegativeMaxWait      = errors.New("debounce: maxWait must not be negative")
	ErrImmediateUnsupported = errors.New("debounce: immediate is only supported by Controller")
	ErrNilClock             = errors.New("debounce: clock is required")
	ErrNilAction            = errors.New("debounce: action is required")
)

// Policy is the immutable scheduling configuration of one controller.
type Policy struct {
	// Delay is the silence required before a trailing fire.
	Delay time.Duration
	// Immediate emits the first value the controller ever observes
	// synchronously, without arming a timer.
	Immediate bool
	// Leading fires on the first call of a burst.
	Leading bool
	// Trailing fires Delay after the last call of a burst.
	Trailing bool
	// MaxWait forces a fire this long after a burst began. Zero means unset.
	MaxWait time.Duration
}

// Option adjusts a Policy built by NewPolicy.
type Option func(*Policy)

// NewPolicy returns a trailing-only policy with the given delay, modified by opts.
func NewPolicy(delay time.Duration, opts ...Option) Policy {
	p := Policy{Delay: delay, Trailing: true}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithLeading fires at the start of each burst as well.
func WithLeading() Option {
	return func(p *Policy) {
		p.Leading = true
	}
}

// WithoutTrailing disables the trailing fire.
func WithoutTrailing() Option {
	return func(p *Policy) {
		p.Trailing = false
	}
}

// WithMaxWait bounds how long a continuous burst may postpone a fire.
func WithMaxWait(d time.Duration) Option {
	return func(p *Policy) {
		p.MaxWait = d
	}
}

// WithImmediate emits the very first observed value synchronously.
func WithImmediate() Option {
	return func(p *Policy) {
		p.Immediate = true
	}
}

// Validate reports configuration errors.
func (p Policy) Validate() error {
	if p.Delay < 0 {
		return ErrNegativeDelay
	}
	if p.MaxWait < 0 {
		return ErrNegativeMaxWait
	}
	return nil
}

// schedules reports whether any timer is ever armed under this policy.
func (p Policy) schedules() bool {
	return p.Leading || p.Trailing
}

// Kind identifies a state transition of a controller.
type Kind uint8

const (
	// KindArmed means a burst started and timers were armed without emitting.
	KindArmed Kind = iota + 1

	// KindImmediate is the synchronous emission of the first observed value.
	KindImmediate

	// KindLeading is the emission at the start of a burst.
	KindLeading

	// KindTrailing is the emission after Delay of silence.
	KindTrailing

	// KindMaxWait is the forced emission after MaxWait.
	KindMaxWait

	// KindFlush is an emission requested explicitly by the caller.
	KindFlush

	// KindIdle means timers were cleared without emitting a value.
	KindIdle
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindArmed:
		return "ARMED"
	case KindImmediate:
		return "IMMEDIATE"
	case KindLeading:
		return "LEADING"
	case KindTrailing:
		return "TRAILING"
	case KindMaxWait:
		return "MAX_WAIT"
	case KindFlush:
		return "FLUSH"
	case KindIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// Emits reports whether the transition carries a new debounced value.
func (k Kind) Emits() bool {
	switch k {
	case KindImmediate, KindLeading, KindTrailing, KindMaxWait, KindFlush:
		return true
	}
	return false
}

// Settles reports whether the transition ends a burst with a value.
func (k Kind) Settles() bool {
	switch k {
	case KindTrailing, KindMaxWait, KindFlush:
		return true
	}
	return false
}

// State is the continuously readable output of a Controller.
type State[T any] struct {
	Value      T
	Debouncing bool
}

// Event is pushed to subscribers on every state transition.
type Event[T any] struct {
	Kind       Kind
	Value      T
	Debouncing bool
}

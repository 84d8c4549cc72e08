// Package validation runs an asynchronous validator on a debounced field value.
package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/debounced/internal/clock"
	"github.com/sweeney/debounced/internal/debounce"
)

// ErrNilValidator is returned when no validator is given.
var ErrNilValidator = errors.New("validation: validator is required")

// Validator checks one value. A nil error means valid; otherwise the error
// message is surfaced as the validation error.
type Validator[T comparable] func(ctx context.Context, value T) error

// Phase is where the field is in its debounce/validate cycle.
type Phase uint8

const (
	// PhaseIdle means no change is pending and no validation is running.
	PhaseIdle Phase = iota
	// PhaseDebouncing means the raw value changed and the timer is armed.
	PhaseDebouncing
	// PhaseValidating means the validator is running for the latest value.
	PhaseValidating
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseDebouncing:
		return "DEBOUNCING"
	case PhaseValidating:
		return "VALIDATING"
	default:
		return "UNKNOWN"
	}
}

// Options configures a Validation.
type Options[T comparable] struct {
	Policy debounce.Policy
	// OnChange, if set, is called after every state change. It may be
	// called from the timer goroutine or a validator goroutine.
	OnChange func(State[T])
}

// State is the validation view of a field.
type State[T comparable] struct {
	// Value is the latest debounced value.
	Value        T
	Phase        Phase
	IsValid      bool
	Error        string
	IsValidating bool
	IsDebouncing bool
}

// Validation pipes debounced values through a Validator.
//
// A value arriving while a validation runs does not cancel it. Results
// are applied only if their value is still the latest debounced value and
// no newer result has been applied.
type Validation[T comparable] struct {
	ctrl     *debounce.Controller[T]
	validate Validator[T]
	onChange func(State[T])

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu         sync.Mutex
	value      T
	isValid    bool
	errMsg     string
	issued     uint64
	applied    uint64
	validating bool
	closed     bool
}

// New creates a Validation whose field starts empty and valid.
func New[T comparable](clk clock.Clock, validate Validator[T], opts Options[T]) (*Validation[T], error) {
	if validate == nil {
		return nil, ErrNilValidator
	}

	var zero T
	ctrl, err := debounce.NewController(clk, zero, opts.Policy)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &Validation[T]{
		ctrl:     ctrl,
		validate: validate,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		isValid:  true,
	}
	ctrl.Subscribe(v.handle)
	return v, nil
}

// Observe records the latest raw field value.
func (v *Validation[T]) Observe(value T) {
	v.ctrl.Observe(value)
}

// State returns the current validation state.
func (v *Validation[T]) State() State[T] {
	debouncing := v.ctrl.IsDebouncing()

	v.mu.Lock()
	defer v.mu.Unlock()

	phase := PhaseIdle
	switch {
	case debouncing:
		phase = PhaseDebouncing
	case v.validating:
		phase = PhaseValidating
	}
	return State[T]{
		Value:        v.value,
		Phase:        phase,
		IsValid:      v.isValid,
		Error:        v.errMsg,
		IsValidating: v.validating,
		IsDebouncing: debouncing,
	}
}

// Wait blocks until every validator call started so far has returned.
func (v *Validation[T]) Wait() {
	_ = v.group.Wait()
}

// Close stops the debounce timers and cancels the context passed to
// running validators. Their results are discarded.
func (v *Validation[T]) Close() {
	v.ctrl.Close()

	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()

	v.cancel()
}

func (v *Validation[T]) handle(e debounce.Event[T]) {
	if e.Kind.Emits() {
		v.start(e.Value)
		return
	}
	v.notify()
}

func (v *Validation[T]) start(value T) {
	var zero T

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.value = value
	v.issued++
	seq := v.issued

	// Empty input is never invalid.
	if value == zero {
		v.isValid = true
		v.errMsg = ""
		v.validating = false
		v.applied = seq
		v.mu.Unlock()
		v.notify()
		return
	}

	v.validating = true
	v.mu.Unlock()
	v.notify()

	v.group.Go(func() error {
		err := v.run(value)
		v.finish(seq, value, err)
		return nil
	})
}

// run calls the validator, turning a panic into an error.
func (v *Validation[T]) run(value T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return v.validate(v.ctx, value)
}

func (v *Validation[T]) finish(seq uint64, value T, err error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if seq == v.issued {
		v.validating = false
	}
	if value == v.value && seq > v.applied {
		v.applied = seq
		v.isValid = err == nil
		v.errMsg = ""
		if err != nil {
			v.errMsg = err.Error()
		}
	}
	v.mu.Unlock()
	v.notify()
}

func (v *Validation[T]) notify() {
	if v.onChange != nil {
		v.onChange(v.State())
	}
}

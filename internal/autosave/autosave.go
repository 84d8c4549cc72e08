// Package autosave persists a debounced data snapshot through a caller-supplied
// save function.
package autosave

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/debounced/internal/clock"
	"github.com/sweeney/debounced/internal/debounce"
)

// ErrNilSave is returned when no save function is given.
var ErrNilSave = errors.New("autosave: save function is required")

// SaveFunc persists one snapshot.
//
// Saves are not serialized: if the previous save is still running when the
// next settle happens, the next save starts anyway. A persistence layer
// that cannot take out-of-order writes must serialize inside SaveFunc.
type SaveFunc[T any] func(ctx context.Context, data T) error

// Options configures an AutoSave.
type Options[T any] struct {
	Policy debounce.Policy
	// Disabled suppresses saves until SetEnabled(true).
	Disabled bool
	// SkipEmpty never saves empty data.
	SkipEmpty bool
	// IsEmpty reports whether data is empty. Defaults to a nil, zero or
	// zero-length check.
	IsEmpty func(T) bool
	// Equal compares snapshots by value. Defaults to cmp.Equal treating nil
	// and empty containers alike.
	Equal func(a, b T) bool
	// OnChange, if set, is called after every state change. It may be
	// called from the timer goroutine or a save goroutine.
	OnChange func(State)
}

// State is the persistence view of the snapshot.
type State struct {
	IsSaving bool
	// LastSaved is set only when a save completes successfully.
	LastSaved time.Time
	// Err is the last save error, cleared by the next successful save.
	Err               error
	HasUnsavedChanges bool
	IsDebouncing      bool
}

// AutoSave debounces snapshots and saves each settled one.
type AutoSave[T any] struct {
	ctrl     *debounce.Controller[T]
	clk      clock.Clock
	save     SaveFunc[T]
	isEmpty  func(T) bool
	equal    func(a, b T) bool
	skip     bool
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	// observeMu keeps raw and the controller's pending value in step.
	observeMu sync.Mutex

	mu        sync.Mutex
	raw       T
	handed    T
	saving    int
	lastSaved time.Time
	err       error
	enabled   bool
	closed    bool
}

// New creates an AutoSave. initial is treated as already persisted.
func New[T any](clk clock.Clock, save SaveFunc[T], initial T, opts Options[T]) (*AutoSave[T], error) {
	if save == nil {
		return nil, ErrNilSave
	}

	ctrl, err := debounce.NewController(clk, initial, opts.Policy)
	if err != nil {
		return nil, err
	}

	a := &AutoSave[T]{
		ctrl:     ctrl,
		clk:      clk,
		save:     save,
		isEmpty:  opts.IsEmpty,
		equal:    opts.Equal,
		skip:     opts.SkipEmpty,
		onChange: opts.OnChange,
		raw:      initial,
		handed:   initial,
		enabled:  !opts.Disabled,
	}
	if a.isEmpty == nil {
		a.isEmpty = IsEmpty[T]
	}
	if a.equal == nil {
		a.equal = Equal[T]
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	ctrl.Subscribe(a.handle)
	return a, nil
}

// Observe records the latest snapshot. A snapshot equal to the previous one
// is ignored. Observe must not be called from OnChange or a Subscribe
// callback.
func (a *AutoSave[T]) Observe(data T) {
	a.observeMu.Lock()
	defer a.observeMu.Unlock()

	a.mu.Lock()
	if a.closed || a.equal(a.raw, data) {
		a.mu.Unlock()
		return
	}
	a.raw = data
	a.mu.Unlock()

	a.ctrl.Observe(data)
}

// Flush saves the pending snapshot now instead of waiting for the timer.
func (a *AutoSave[T]) Flush() {
	a.ctrl.Flush()
}

// Subscribe registers fn for every debounce transition of the snapshot, in
// the order they happen. It returns a function that removes fn.
func (a *AutoSave[T]) Subscribe(fn func(debounce.Event[T])) func() {
	return a.ctrl.Subscribe(fn)
}

// SetEnabled turns saving on or off. Snapshots that settle while disabled
// are not saved later.
func (a *AutoSave[T]) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
	a.notify()
}

// Enabled reports whether saving is on.
func (a *AutoSave[T]) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// State returns the current persistence state.
func (a *AutoSave[T]) State() State {
	debouncing := a.ctrl.IsDebouncing()

	a.mu.Lock()
	defer a.mu.Unlock()

	unsaved := debouncing || !a.equal(a.raw, a.handed)
	if a.skip && a.isEmpty(a.raw) {
		unsaved = false
	}
	return State{
		IsSaving:          a.saving > 0,
		LastSaved:         a.lastSaved,
		Err:               a.err,
		HasUnsavedChanges: unsaved,
		IsDebouncing:      debouncing,
	}
}

// Wait blocks until every save started so far has returned.
func (a *AutoSave[T]) Wait() {
	_ = a.group.Wait()
}

// Close stops the debounce timers and cancels the context passed to
// running saves. Call Flush and Wait first to persist pending data.
func (a *AutoSave[T]) Close() {
	a.ctrl.Close()

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.cancel()
}

func (a *AutoSave[T]) handle(e debounce.Event[T]) {
	if e.Kind.Settles() {
		a.persist(e.Value)
		return
	}
	a.notify()
}

func (a *AutoSave[T]) persist(data T) {
	a.mu.Lock()
	if a.closed || !a.enabled || (a.skip && a.isEmpty(data)) {
		a.mu.Unlock()
		a.notify()
		return
	}
	a.handed = data
	a.saving++
	a.mu.Unlock()
	a.notify()

	a.group.Go(func() error {
		err := a.save(a.ctx, data)

		a.mu.Lock()
		a.saving--
		if err != nil {
			a.err = err
		} else {
			a.lastSaved = a.clk.Now()
			a.err = nil
		}
		a.mu.Unlock()
		a.notify()
		return nil
	})
}

func (a *AutoSave[T]) notify() {
	if a.onChange != nil {
		a.onChange(a.State())
	}
}

var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Equal is the default snapshot comparison. Unexported fields are compared
// too. Values cmp cannot compare are reported as not equal.
func Equal[T any](x, y T) (equal bool) {
	defer func() {
		if r := recover(); r != nil {
			equal = false
		}
	}()
	return cmp.Equal(x, y, cmpopts.EquateEmpty(), exportAll)
}

// IsEmpty is the default emptiness check: nil, zero-length containers and
// strings, and zero values are empty. Pointers and interfaces are followed.
func IsEmpty[T any](data T) bool {
	return isEmptyValue(reflect.ValueOf(data))
}

func isEmptyValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.String, reflect.Array, reflect.Chan:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return isEmptyValue(v.Elem())
	}
	return v.IsZero()
}

package debounce

import (
	"slices"
	"sync"

	"github.com/sweeney/debounced/internal/clock"
)

// Controller coalesces a stream of observed values into a debounced value.
//
// Observe may be called from any goroutine. Subscribers run outside the
// controller's lock, one event at a time, in the order transitions happened.
type Controller[T any] struct {
	sched *scheduler[T]

	// Guarded by sched.mu.
	value      T
	debouncing bool

	subsMu  sync.Mutex
	subs    map[uint64]func(Event[T])
	nextSub uint64

	events *dispatcher[Event[T]]
}

// NewController creates a controller whose debounced value starts at initial.
func NewController[T any](clk clock.Clock, initial T, policy Policy) (*Controller[T], error) {
	if clk == nil {
		return nil, ErrNilClock
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	c := &Controller[T]{
		value: initial,
		subs:  make(map[uint64]func(Event[T])),
	}
	c.events = newDispatcher(c.publish)
	c.sched = newScheduler(clk, policy, c.apply, c.events.drain)
	return c, nil
}

// Observe records a new input value.
func (c *Controller[T]) Observe(v T) {
	c.sched.observe(v, true)
}

// Flush emits the pending value now, if there is one, and clears both timers.
func (c *Controller[T]) Flush() {
	c.sched.flush(nil, true)
}

// Cancel drops the pending value and clears both timers without emitting.
func (c *Controller[T]) Cancel() {
	c.sched.cancel()
}

// Close disposes the controller. Later calls to Observe are ignored.
func (c *Controller[T]) Close() {
	c.sched.close()
}

// Value returns the current debounced value.
func (c *Controller[T]) Value() T {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	return c.value
}

// IsDebouncing reports whether a timer is armed.
func (c *Controller[T]) IsDebouncing() bool {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	return c.debouncing
}

// State returns the debounced value and debouncing flag as one consistent pair.
func (c *Controller[T]) State() State[T] {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()
	return State[T]{Value: c.value, Debouncing: c.debouncing}
}

// Subscribe registers fn for every later transition. The returned function
// removes the subscription.
func (c *Controller[T]) Subscribe(fn func(Event[T])) func() {
	c.subsMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// apply runs with sched.mu held.
func (c *Controller[T]) apply(kind Kind, v T, debouncing bool) {
	if kind.Emits() {
		c.value = v
	}
	c.debouncing = debouncing
	c.events.push(Event[T]{Kind: kind, Value: c.value, Debouncing: debouncing})
}

func (c *Controller[T]) publish(e Event[T]) {
	c.subsMu.Lock()
	ids := make([]uint64, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.subsMu.Unlock()

	// Subscribers are called in registration order.
	slices.Sort(ids)
	for _, id := range ids {
		c.subsMu.Lock()
		fn, ok := c.subs[id]
		c.subsMu.Unlock()
		if ok {
			fn(e)
		}
	}
}

package debounce

import (
	"sync"

	"github.com/sweeney/debounced/internal/clock"
)

// runtimeState is the mutable state of one controller. It is never shared.
type runtimeState[T any] struct {
	// Most recent input, held until a fire consumes it.
	pending T
	// Whether pending arrived after the last emission.
	hasPending bool
	// At most one of each; nil when not armed.
	trailing clock.Timer
	maxWait  clock.Timer
	// Bumped on every arm and disarm. A callback whose sequence is stale is a no-op.
	trailingSeq uint64
	maxWaitSeq  uint64
	// Whether any value was ever observed (gates Immediate).
	observed bool
}

// scheduler is the leading/trailing/maxWait state machine shared by
// Controller and Debouncer.
type scheduler[T any] struct {
	mu     sync.Mutex
	clk    clock.Clock
	policy Policy
	state  runtimeState[T]
	closed bool

	// onSignal runs with mu held on every transition. It must not call back
	// into the scheduler or run user code.
	onSignal func(kind Kind, value T, debouncing bool)
	// drain runs after mu is released; it delivers whatever onSignal queued.
	drain func()
}

func newScheduler[T any](clk clock.Clock, policy Policy, onSignal func(Kind, T, bool), drain func()) *scheduler[T] {
	return &scheduler[T]{
		clk:      clk,
		policy:   policy,
		onSignal: onSignal,
		drain:    drain,
	}
}

// observe records v and applies the policy. allowImmediate is false for
// Debouncer, which has no immediate mode.
func (s *scheduler[T]) observe(v T, allowImmediate bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	st := &s.state
	first := !st.observed
	st.observed = true
	st.pending = v
	st.hasPending = true
	idle := !s.armedLocked()

	switch {
	case first && allowImmediate && s.policy.Immediate:
		st.hasPending = false
		s.signalLocked(KindImmediate, v)

	case !s.policy.schedules():
		// Nothing fires on its own; the value waits for flush.

	default:
		leading := idle && s.policy.Leading
		if leading {
			st.hasPending = false
		}
		// The trailing timer also marks the burst window, so it is armed
		// even when only leading is set.
		s.armTrailingLocked()
		if s.policy.MaxWait > 0 && st.maxWait == nil {
			s.armMaxWaitLocked()
		}
		if leading {
			s.signalLocked(KindLeading, v)
		} else if idle {
			s.signalLocked(KindArmed, v)
		}
	}

	s.mu.Unlock()
	s.drain()
}

// flush clears both timers and returns the value to emit now: explicit if
// given, else the pending value. ok is false when there is nothing to emit.
func (s *scheduler[T]) flush(explicit *T, signal bool) (v T, ok bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return v, false
	}

	st := &s.state
	wasArmed := s.armedLocked()
	switch {
	case explicit != nil:
		v, ok = *explicit, true
	case st.hasPending:
		v, ok = st.pending, true
	}
	s.disarmLocked()
	st.hasPending = false

	if signal {
		if ok {
			s.signalLocked(KindFlush, v)
		} else if wasArmed {
			s.signalLocked(KindIdle, st.pending)
		}
	}

	s.mu.Unlock()
	s.drain()
	return v, ok
}

// cancel clears both timers and the pending value without emitting.
func (s *scheduler[T]) cancel() {
	s.mu.Lock()
	wasArmed := s.armedLocked()
	s.disarmLocked()
	s.state.hasPending = false
	if wasArmed && !s.closed {
		s.signalLocked(KindIdle, s.state.pending)
	}
	s.mu.Unlock()
	s.drain()
}

// close cancels and rejects all later input. Safe to call more than once.
func (s *scheduler[T]) close() {
	s.mu.Lock()
	s.disarmLocked()
	s.state.hasPending = false
	s.closed = true
	s.mu.Unlock()
}

// pending reports whether either timer is armed.
func (s *scheduler[T]) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armedLocked()
}

func (s *scheduler[T]) armedLocked() bool {
	return s.state.trailing != nil || s.state.maxWait != nil
}

func (s *scheduler[T]) signalLocked(kind Kind, v T) {
	s.onSignal(kind, v, s.armedLocked())
}

func (s *scheduler[T]) armTrailingLocked() {
	st := &s.state
	if st.trailing != nil {
		st.trailing.Stop()
	}
	st.trailingSeq++
	seq := st.trailingSeq
	st.trailing = s.clk.AfterFunc(s.policy.Delay, func() {
		s.fire(KindTrailing, seq)
	})
}

func (s *scheduler[T]) armMaxWaitLocked() {
	st := &s.state
	st.maxWaitSeq++
	seq := st.maxWaitSeq
	st.maxWait = s.clk.AfterFunc(s.policy.MaxWait, func() {
		s.fire(KindMaxWait, seq)
	})
}

// disarmLocked stops both timers and invalidates callbacks already queued.
func (s *scheduler[T]) disarmLocked() {
	st := &s.state
	if st.trailing != nil {
		st.trailing.Stop()
		st.trailing = nil
	}
	if st.maxWait != nil {
		st.maxWait.Stop()
		st.maxWait = nil
	}
	st.trailingSeq++
	st.maxWaitSeq++
}

// fire is the timer callback. Any fire clears both timers.
func (s *scheduler[T]) fire(kind Kind, seq uint64) {
	s.mu.Lock()
	if s.closed || !s.currentLocked(kind, seq) {
		s.mu.Unlock()
		return
	}

	st := &s.state
	emit := st.hasPending && (kind == KindMaxWait || s.policy.Trailing)
	v := st.pending
	s.disarmLocked()
	st.hasPending = false

	if emit {
		s.signalLocked(kind, v)
	} else {
		s.signalLocked(KindIdle, v)
	}

	s.mu.Unlock()
	s.drain()
}

func (s *scheduler[T]) currentLocked(kind Kind, seq uint64) bool {
	st := &s.state
	switch kind {
	case KindTrailing:
		return st.trailing != nil && seq == st.trailingSeq
	case KindMaxWait:
		return st.maxWait != nil && seq == st.maxWaitSeq
	}
	return false
}

// Package search gates a debounced text input behind a minimum length.
package search

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sweeney/debounced/internal/clock"
	"github.com/sweeney/debounced/internal/debounce"
)

// ErrNegativeMinLength is returned for a MinLength below zero.
var ErrNegativeMinLength = errors.New("search: minLength must not be negative")

// Options configures a Search.
type Options struct {
	Policy debounce.Policy
	// MinLength is the number of characters (runes) a term needs before
	// a search is worth running.
	MinLength int
	// TrimValue strips surrounding whitespace before debouncing.
	TrimValue bool
}

// State is the search-facing view of the debounced input.
type State struct {
	// Term is the debounced, normalized input.
	Term         string
	IsDebouncing bool
	// IsSearchActive reports that Term is long enough.
	IsSearchActive bool
	// ShouldSearch is IsSearchActive and not IsDebouncing.
	ShouldSearch bool
	// HasMinLength is checked against the latest input, not the debounced
	// term, so callers can show "keep typing" feedback early.
	HasMinLength bool
}

// Search wraps a string Controller.
type Search struct {
	ctrl *debounce.Controller[string]
	opts Options

	mu  sync.Mutex
	raw string
}

// New creates a Search with an empty term.
func New(clk clock.Clock, opts Options) (*Search, error) {
	if opts.MinLength < 0 {
		return nil, ErrNegativeMinLength
	}
	ctrl, err := debounce.NewController(clk, "", opts.Policy)
	if err != nil {
		return nil, err
	}
	return &Search{ctrl: ctrl, opts: opts}, nil
}

// Observe records the latest raw input.
func (s *Search) Observe(raw string) {
	v := s.normalize(raw)

	s.mu.Lock()
	s.raw = v
	s.mu.Unlock()

	s.ctrl.Observe(v)
}

// State returns the current search state.
func (s *Search) State() State {
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()

	return s.build(s.ctrl.State(), raw)
}

// Subscribe calls fn with the search state on every debounce transition.
func (s *Search) Subscribe(fn func(State)) func() {
	return s.ctrl.Subscribe(func(e debounce.Event[string]) {
		s.mu.Lock()
		raw := s.raw
		s.mu.Unlock()
		fn(s.build(debounce.State[string]{Value: e.Value, Debouncing: e.Debouncing}, raw))
	})
}

// Close disposes the underlying controller.
func (s *Search) Close() {
	s.ctrl.Close()
}

func (s *Search) normalize(raw string) string {
	if s.opts.TrimValue {
		return strings.TrimSpace(raw)
	}
	return raw
}

func (s *Search) build(st debounce.State[string], raw string) State {
	active := utf8.RuneCountInString(st.Value) >= s.opts.MinLength
	return State{
		Term:           st.Value,
		IsDebouncing:   st.Debouncing,
		IsSearchActive: active,
		ShouldSearch:   active && !st.Debouncing,
		HasMinLength:   utf8.RuneCountInString(raw) >= s.opts.MinLength,
	}
}

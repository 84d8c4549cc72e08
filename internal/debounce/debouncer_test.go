package debounce

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/debounced/internal/clock"
)

// actionRecorder is a fake action that records every invocation.
type actionRecorder struct {
	Calls []string
	Err   error
}

func (r *actionRecorder) action(s string) error {
	r.Calls = append(r.Calls, s)
	return r.Err
}

func newTestDebouncer(t *testing.T, policy Policy, onError ErrorHandler) (*clock.Fake, *Debouncer[string], *actionRecorder) {
	t.Helper()
	clk := clock.NewFake(testStart)
	rec := &actionRecorder{}
	d, err := NewDebouncer(clk, rec.action, policy, onError)
	if err != nil {
		t.Fatalf("NewDebouncer: %v", err)
	}
	t.Cleanup(d.Close)
	return clk, d, rec
}

func TestDebouncerTrailing(t *testing.T) {
	clk, d, rec := newTestDebouncer(t, NewPolicy(300*time.Millisecond), nil)

	d.Call("a")
	clk.Advance(100 * time.Millisecond)
	d.Call("ab")
	clk.Advance(50 * time.Millisecond)
	d.Call("abc")

	if !d.Pending() {
		t.Error("expected pending during burst")
	}

	clk.Advance(300 * time.Millisecond)
	if len(rec.Calls) != 1 || rec.Calls[0] != "abc" {
		t.Fatalf("calls: got %v, want [abc]", rec.Calls)
	}
	if d.Pending() {
		t.Error("expected not pending after fire")
	}
}

func TestDebouncerLeadingAndTrailing(t *testing.T) {
	clk, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond, WithLeading()), nil)

	for _, s := range []string{"1", "2", "3", "4"} {
		d.Call(s)
		clk.Advance(40 * time.Millisecond)
	}
	clk.Advance(time.Second)

	want := []string{"1", "4"}
	if len(rec.Calls) != len(want) {
		t.Fatalf("calls: got %v, want %v", rec.Calls, want)
	}
	for i := range want {
		if rec.Calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, rec.Calls[i], want[i])
		}
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	clk, d, rec := newTestDebouncer(t, NewPolicy(200*time.Millisecond, WithMaxWait(400*time.Millisecond)), nil)

	// Calls every 100ms for 1s: the trailing timer never elapses on its own.
	for i := 0; i < 10; i++ {
		d.Call(string(rune('a' + i)))
		clk.Advance(100 * time.Millisecond)
	}
	clk.Advance(time.Second)

	// maxWait at 400ms (d) and 800ms (h), trailing after the last call (j).
	want := []string{"d", "h", "j"}
	if len(rec.Calls) != len(want) {
		t.Fatalf("calls: got %v, want %v", rec.Calls, want)
	}
	for i := range want {
		if rec.Calls[i] != want[i] {
			t.Errorf("call %d: got %s, want %s", i, rec.Calls[i], want[i])
		}
	}
}

func TestDebouncerCancel(t *testing.T) {
	clk, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond, WithMaxWait(time.Second)), nil)

	d.Call("a")
	clk.Advance(50 * time.Millisecond)
	d.Cancel()
	clk.Advance(10 * time.Second)

	if len(rec.Calls) != 0 {
		t.Errorf("action invoked after cancel: %v", rec.Calls)
	}
	if d.Pending() {
		t.Error("expected not pending after cancel")
	}
}

func TestDebouncerCancelTwice(t *testing.T) {
	clk, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond), nil)

	d.Call("a")
	d.Cancel()
	d.Cancel()
	clk.Advance(time.Second)

	if len(rec.Calls) != 0 {
		t.Errorf("action invoked: %v", rec.Calls)
	}

	// Still usable afterwards.
	d.Call("b")
	clk.Advance(time.Second)
	if len(rec.Calls) != 1 || rec.Calls[0] != "b" {
		t.Errorf("calls after reuse: %v", rec.Calls)
	}
}

func TestDebouncerFlushWith(t *testing.T) {
	clk, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond), nil)

	d.Call("pending")
	if err := d.FlushWith("x"); err != nil {
		t.Fatalf("FlushWith: %v", err)
	}

	if len(rec.Calls) != 1 || rec.Calls[0] != "x" {
		t.Fatalf("calls: got %v, want [x]", rec.Calls)
	}
	if d.Pending() {
		t.Error("expected not pending immediately after flush")
	}

	clk.Advance(time.Second)
	if len(rec.Calls) != 1 {
		t.Errorf("timer fired after flush: %v", rec.Calls)
	}
}

func TestDebouncerFlushUsesPendingArgs(t *testing.T) {
	_, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond), nil)

	d.Call("a")
	d.Call("b")
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(rec.Calls) != 1 || rec.Calls[0] != "b" {
		t.Errorf("calls: got %v, want [b]", rec.Calls)
	}

	// Nothing pending: no invocation.
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(rec.Calls) != 1 {
		t.Errorf("flush without pending args invoked action: %v", rec.Calls)
	}
}

func TestDebouncerFlushPropagatesError(t *testing.T) {
	_, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond), nil)
	rec.Err = errors.New("boom")

	err := d.FlushWith("x")
	if !errors.Is(err, rec.Err) {
		t.Errorf("FlushWith error: got %v, want boom", err)
	}
}

func TestDebouncerTimerErrorGoesToHandler(t *testing.T) {
	var handled []error
	clk, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond), func(err error) {
		handled = append(handled, err)
	})
	rec.Err = errors.New("save failed")

	d.Call("a")
	clk.Advance(time.Second)

	if len(handled) != 1 || handled[0].Error() != "save failed" {
		t.Errorf("handled: got %v, want [save failed]", handled)
	}
	if len(rec.Calls) != 1 {
		t.Errorf("action must not be retried: %v", rec.Calls)
	}
}

func TestDebouncerClose(t *testing.T) {
	clk, d, rec := newTestDebouncer(t, NewPolicy(100*time.Millisecond), nil)

	d.Call("a")
	d.Close()
	d.Call("b")
	clk.Advance(time.Second)

	if len(rec.Calls) != 0 {
		t.Errorf("action invoked after close: %v", rec.Calls)
	}
	if err := d.FlushWith("c"); err != nil {
		t.Errorf("FlushWith after close: %v", err)
	}
	if len(rec.Calls) != 0 {
		t.Errorf("FlushWith after close invoked action: %v", rec.Calls)
	}
}

func TestNewDebouncerErrors(t *testing.T) {
	clk := clock.NewFake(testStart)
	noop := func(string) error { return nil }

	tests := []struct {
		name   string
		clk    clock.Clock
		action func(string) error
		policy Policy
		want   error
	}{
		{"nil clock", nil, noop, NewPolicy(time.Second), ErrNilClock},
		{"nil action", clk, nil, NewPolicy(time.Second), ErrNilAction},
		{"immediate", clk, noop, NewPolicy(time.Second, WithImmediate()), ErrImmediateUnsupported},
		{"negative delay", clk, noop, NewPolicy(-time.Millisecond), ErrNegativeDelay},
		{"negative maxWait", clk, noop, NewPolicy(time.Second, WithMaxWait(-time.Second)), ErrNegativeMaxWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDebouncer(tt.clk, tt.action, tt.policy, nil)
			if err != tt.want {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

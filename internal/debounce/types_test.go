package debounce

import (
	"testing"
	"time"
)

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy(250 * time.Millisecond)

	if p.Delay != 250*time.Millisecond {
		t.Errorf("Delay: got %v, want 250ms", p.Delay)
	}
	if !p.Trailing {
		t.Error("trailing should default to true")
	}
	if p.Leading || p.Immediate || p.MaxWait != 0 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

func TestNewPolicyOptions(t *testing.T) {
	p := NewPolicy(time.Second, WithLeading(), WithoutTrailing(), WithMaxWait(5*time.Second), WithImmediate())

	if !p.Leading {
		t.Error("expected Leading")
	}
	if p.Trailing {
		t.Error("expected Trailing=false")
	}
	if p.MaxWait != 5*time.Second {
		t.Errorf("MaxWait: got %v, want 5s", p.MaxWait)
	}
	if !p.Immediate {
		t.Error("expected Immediate")
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   error
	}{
		{"zero delay", NewPolicy(0), nil},
		{"positive", NewPolicy(time.Second, WithMaxWait(2*time.Second)), nil},
		{"maxWait below delay", NewPolicy(time.Second, WithMaxWait(time.Millisecond)), nil},
		{"negative delay", NewPolicy(-1), ErrNegativeDelay},
		{"negative maxWait", NewPolicy(time.Second, WithMaxWait(-1)), ErrNegativeMaxWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); err != tt.want {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindArmed, "ARMED"},
		{KindImmediate, "IMMEDIATE"},
		{KindLeading, "LEADING"},
		{KindTrailing, "TRAILING"},
		{KindMaxWait, "MAX_WAIT"},
		{KindFlush, "FLUSH"},
		{KindIdle, "IDLE"},
		{Kind(0), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String(): got %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindEmitsAndSettles(t *testing.T) {
	tests := []struct {
		kind    Kind
		emits   bool
		settles bool
	}{
		{KindArmed, false, false},
		{KindImmediate, true, false},
		{KindLeading, true, false},
		{KindTrailing, true, true},
		{KindMaxWait, true, true},
		{KindFlush, true, true},
		{KindIdle, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Emits(); got != tt.emits {
				t.Errorf("Emits: got %v, want %v", got, tt.emits)
			}
			if got := tt.kind.Settles(); got != tt.settles {
				t.Errorf("Settles: got %v, want %v", got, tt.settles)
			}
		})
	}
}

func TestDispatcherPreservesOrder(t *testing.T) {
	var got []int
	var d *dispatcher[int]
	d = newDispatcher(func(i int) {
		got = append(got, i)
		if i == 1 {
			// Pushed while draining: delivered after the current item.
			d.push(10)
			d.drain()
		}
	})

	d.push(1)
	d.push(2)
	d.drain()

	want := []int{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDispatcherReset(t *testing.T) {
	var got []int
	d := newDispatcher(func(i int) { got = append(got, i) })

	d.push(1)
	d.reset()
	d.drain()

	if len(got) != 0 {
		t.Errorf("reset items delivered: %v", got)
	}
}

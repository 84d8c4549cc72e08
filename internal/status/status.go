// Package status provides a thread-safe status tracker for the debounced daemon.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"maps"
	"sync"
	"time"

	"github.com/sweeney/debounced/internal/autosave"
	"github.com/sweeney/debounced/internal/clock"
	"github.com/sweeney/debounced/internal/debounce"
	"github.com/sweeney/debounced/internal/search"
	"github.com/sweeney/debounced/internal/validation"
)

// Config contains daemon configuration for display.
type Config struct {
	Input       string
	Pin         int
	PollMs      int64
	DelayMs     int64
	MaxWaitMs   int64
	Leading     bool
	Trailing    bool
	MinLength   int
	Trim        bool
	SkipEmpty   bool
	Pattern     string
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Counts are running totals since startup.
type Counts struct {
	Observed   int
	Fires      map[debounce.Kind]int
	Saves      int
	SaveErrors int
}

// SaveInfo mirrors autosave.State with the error flattened to text.
type SaveInfo struct {
	IsSaving          bool
	LastSaved         time.Time
	Err               string
	HasUnsavedChanges bool
	IsDebouncing      bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	InstanceID    string
	Raw           string
	Counts        Counts
	Search        search.State
	Validation    validation.State[string]
	Save          SaveInfo
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	clk  clock.Clock
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker. The start time is taken from clk.
func NewTracker(clk clock.Clock, id string, cfg Config) *Tracker {
	return &Tracker{
		clk: clk,
		snap: Snapshot{
			InstanceID: id,
			StartTime:  clk.Now(),
			Config:     cfg,
			Counts:     Counts{Fires: make(map[debounce.Kind]int)},
			Validation: validation.State[string]{IsValid: true},
		},
	}
}

// Observe records a raw input value.
func (t *Tracker) Observe(raw string) {
	t.mu.Lock()
	t.snap.Raw = raw
	t.snap.Counts.Observed++
	t.mu.Unlock()
}

// RecordFire counts an emitting transition of the save pipeline.
func (t *Tracker) RecordFire(kind debounce.Kind) {
	if !kind.Emits() {
		return
	}
	t.mu.Lock()
	t.snap.Counts.Fires[kind]++
	t.mu.Unlock()
}

// RecordSave counts a finished save.
func (t *Tracker) RecordSave(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.Counts.SaveErrors++
	} else {
		t.snap.Counts.Saves++
	}
	t.mu.Unlock()
}

// SetSearch stores the latest search state.
func (t *Tracker) SetSearch(st search.State) {
	t.mu.Lock()
	t.snap.Search = st
	t.mu.Unlock()
}

// SetValidation stores the latest validation state.
func (t *Tracker) SetValidation(st validation.State[string]) {
	t.mu.Lock()
	t.snap.Validation = st
	t.mu.Unlock()
}

// SetSave stores the latest autosave state.
func (t *Tracker) SetSave(st autosave.State) {
	info := SaveInfo{
		IsSaving:          st.IsSaving,
		LastSaved:         st.LastSaved,
		HasUnsavedChanges: st.HasUnsavedChanges,
		IsDebouncing:      st.IsDebouncing,
	}
	if st.Err != nil {
		info.Err = st.Err.Error()
	}

	t.mu.Lock()
	t.snap.Save = info
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is read from the clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts.Fires = maps.Clone(t.snap.Counts.Fires)
	t.mu.RUnlock()
	s.Now = t.clk.Now()
	return s
}

package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Instance      string         `json:"instance"`
	Raw           string         `json:"raw"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"counts"`
	Search        SearchJSON     `json:"search"`
	Validation    ValidationJSON `json:"validation"`
	Save          SaveJSON       `json:"save"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Observed   int            `json:"observed"`
	Fires      map[string]int `json:"fires"`
	Saves      int            `json:"saves"`
	SaveErrors int            `json:"save_errors"`
}

// SearchJSON is the JSON representation of the search state.
type SearchJSON struct {
	Term         string `json:"term"`
	Debouncing   bool   `json:"debouncing"`
	Active       bool   `json:"active"`
	ShouldSearch bool   `json:"should_search"`
	HasMinLength bool   `json:"has_min_length"`
}

// ValidationJSON is the JSON representation of the validation state.
type ValidationJSON struct {
	Value string `json:"value"`
	Phase string `json:"phase"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// SaveJSON is the JSON representation of the autosave state.
type SaveJSON struct {
	Saving     bool   `json:"saving"`
	Unsaved    bool   `json:"unsaved"`
	Debouncing bool   `json:"debouncing"`
	LastSaved  string `json:"last_saved,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Input       string `json:"input"`
	Pin         int    `json:"pin,omitempty"`
	PollMs      int64  `json:"poll_ms,omitempty"`
	DelayMs     int64  `json:"delay_ms"`
	MaxWaitMs   int64  `json:"max_wait_ms,omitempty"`
	Leading     bool   `json:"leading"`
	Trailing    bool   `json:"trailing"`
	MinLength   int    `json:"min_length"`
	Trim        bool   `json:"trim"`
	SkipEmpty   bool   `json:"skip_empty"`
	Pattern     string `json:"pattern,omitempty"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	fires := make(map[string]int, len(snap.Counts.Fires))
	for kind, n := range snap.Counts.Fires {
		fires[kind.String()] = n
	}

	save := SaveJSON{
		Saving:     snap.Save.IsSaving,
		Unsaved:    snap.Save.HasUnsavedChanges,
		Debouncing: snap.Save.IsDebouncing,
		Error:      snap.Save.Err,
	}
	if !snap.Save.LastSaved.IsZero() {
		save.LastSaved = snap.Save.LastSaved.UTC().Format(time.RFC3339)
	}

	cfg := snap.Config
	return StatusInner{
		Instance:      snap.InstanceID,
		Raw:           snap.Raw,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: cfg.Broker},
		Counts: CountsJSON{
			Observed:   snap.Counts.Observed,
			Fires:      fires,
			Saves:      snap.Counts.Saves,
			SaveErrors: snap.Counts.SaveErrors,
		},
		Search: SearchJSON{
			Term:         snap.Search.Term,
			Debouncing:   snap.Search.IsDebouncing,
			Active:       snap.Search.IsSearchActive,
			ShouldSearch: snap.Search.ShouldSearch,
			HasMinLength: snap.Search.HasMinLength,
		},
		Validation: ValidationJSON{
			Value: snap.Validation.Value,
			Phase: snap.Validation.Phase.String(),
			Valid: snap.Validation.IsValid,
			Error: snap.Validation.Error,
		},
		Save: save,
		Config: ConfigJSON{
			Input:       cfg.Input,
			Pin:         cfg.Pin,
			PollMs:      cfg.PollMs,
			DelayMs:     cfg.DelayMs,
			MaxWaitMs:   cfg.MaxWaitMs,
			Leading:     cfg.Leading,
			Trailing:    cfg.Trailing,
			MinLength:   cfg.MinLength,
			Trim:        cfg.Trim,
			SkipEmpty:   cfg.SkipEmpty,
			Pattern:     cfg.Pattern,
			HeartbeatMs: cfg.HeartbeatMs,
			Broker:      cfg.Broker,
			HTTPAddr:    cfg.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT lifecycle event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

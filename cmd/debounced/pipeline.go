package main

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/sweeney/debounced/internal/autosave"
	"github.com/sweeney/debounced/internal/clock"
	"github.com/sweeney/debounced/internal/config"
	"github.com/sweeney/debounced/internal/debounce"
	"github.com/sweeney/debounced/internal/mqtt"
	"github.com/sweeney/debounced/internal/search"
	"github.com/sweeney/debounced/internal/status"
	"github.com/sweeney/debounced/internal/validation"
)

// Status publications are coalesced: the first change goes out at once,
// later ones at most every statusDelay while changes keep coming.
const (
	statusDelay   = time.Second
	statusMaxWait = 5 * time.Second
)

// pipeline feeds every raw input value through search, validation and
// autosave, and keeps the status tracker current.
type pipeline struct {
	clk       clock.Clock
	source    string
	publisher mqtt.Publisher // nil when MQTT is disabled
	tracker   *status.Tracker

	search     *search.Search
	validation *validation.Validation[string]
	autosave   *autosave.AutoSave[string]
	status     *debounce.Debouncer[string] // nil when MQTT is disabled

	seq       atomic.Uint64
	lastQuery string // only touched from the search subscriber
}

func newPipeline(clk clock.Clock, cfg config.Config, publisher mqtt.Publisher, tracker *status.Tracker) (*pipeline, error) {
	p := &pipeline{
		clk:       clk,
		source:    cfg.Input,
		publisher: publisher,
		tracker:   tracker,
	}
	policy := cfg.Policy()

	re, err := cfg.Matcher()
	if err != nil {
		return nil, err
	}

	if publisher != nil {
		p.status, err = debounce.NewDebouncer(clk, p.publishStatus,
			debounce.NewPolicy(statusDelay, debounce.WithLeading(), debounce.WithMaxWait(statusMaxWait)), nil)
		if err != nil {
			return nil, fmt.Errorf("status debouncer: %w", err)
		}
	}

	p.search, err = search.New(clk, search.Options{Policy: policy, MinLength: cfg.MinLength, TrimValue: cfg.Trim})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	p.search.Subscribe(p.onSearch)

	p.validation, err = validation.New(clk, matchValidator(re), validation.Options[string]{
		Policy:   policy,
		OnChange: p.onValidation,
	})
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	p.autosave, err = autosave.New(clk, p.save, "", autosave.Options[string]{
		Policy:    policy,
		SkipEmpty: cfg.SkipEmpty,
		OnChange:  p.onSave,
	})
	if err != nil {
		return nil, fmt.Errorf("autosave: %w", err)
	}
	p.autosave.Subscribe(func(e debounce.Event[string]) {
		p.tracker.RecordFire(e.Kind)
	})

	return p, nil
}

// matchValidator accepts everything when re is nil.
func matchValidator(re *regexp.Regexp) validation.Validator[string] {
	return func(_ context.Context, s string) error {
		if re != nil && !re.MatchString(s) {
			log.Printf("validation: %q rejected", s)
			return fmt.Errorf("must match %s", re)
		}
		return nil
	}
}

// Observe records one raw input value.
func (p *pipeline) Observe(raw string) {
	p.tracker.Observe(raw)
	p.search.Observe(raw)
	// HasMinLength follows every keystroke, not just debounce transitions.
	p.tracker.SetSearch(p.search.State())
	p.validation.Observe(raw)
	p.autosave.Observe(raw)
}

// Shutdown saves pending input, waits for running saves and validations
// and stops every timer.
func (p *pipeline) Shutdown() {
	p.autosave.Flush()
	p.autosave.Wait()
	p.validation.Wait()

	if p.status != nil {
		p.status.Close()
	}
	p.search.Close()
	p.validation.Close()
	p.autosave.Close()
}

func (p *pipeline) save(_ context.Context, text string) error {
	snap := mqtt.Snapshot{
		Timestamp: p.clk.Now(),
		Source:    p.source,
		Text:      text,
		Seq:       p.seq.Add(1),
	}
	if vs := p.validation.State(); vs.Value == text && vs.Phase == validation.PhaseIdle {
		valid := vs.IsValid
		snap.Valid = &valid
	}

	if p.publisher == nil {
		log.Printf("autosave: %q (seq %d)", text, snap.Seq)
		p.tracker.RecordSave(nil)
		return nil
	}

	err := p.publisher.Publish(snap)
	p.tracker.RecordSave(err)
	if err != nil {
		log.Printf("autosave: publish error: %v", err)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	log.Printf("autosave: published %q (seq %d)", text, snap.Seq)
	return nil
}

func (p *pipeline) onSearch(st search.State) {
	p.tracker.SetSearch(st)
	if st.ShouldSearch && !st.IsDebouncing && st.Term != p.lastQuery {
		p.lastQuery = st.Term
		log.Printf("search: %q", st.Term)
	}
	p.changed()
}

func (p *pipeline) onValidation(st validation.State[string]) {
	p.tracker.SetValidation(st)
	p.changed()
}

func (p *pipeline) onSave(st autosave.State) {
	p.tracker.SetSave(st)
	p.changed()
}

func (p *pipeline) changed() {
	if p.status != nil {
		p.status.Call("STATUS")
	}
}

func (p *pipeline) publishStatus(event string) error {
	if mqttStatus, ok := p.publisher.(mqtt.ConnectionStatus); ok {
		p.tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := p.tracker.Snapshot()
	return p.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		RawPayload: status.FormatStatusEvent(snap, event, ""),
	})
}

package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFormatPayload(t *testing.T) {
	valid := true
	snap := Snapshot{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Source:    "stdin",
		Text:      "hello",
		Valid:     &valid,
		Seq:       7,
	}

	payload, err := FormatPayload(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"snapshot":{"timestamp":"2026-02-02T22:18:12Z","source":"stdin","text":"hello","valid":true,"seq":7}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadValidity(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name    string
		valid   *bool
		present bool
		want    bool
	}{
		{"unknown", nil, false, false},
		{"valid", &yes, true, true},
		{"invalid", &no, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatPayload(Snapshot{Timestamp: time.Now(), Source: "gpio", Text: "HIGH", Valid: tt.valid})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed map[string]map[string]any
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}

			v, ok := parsed["snapshot"]["valid"]
			if ok != tt.present {
				t.Fatalf("valid present: got %v, want %v", ok, tt.present)
			}
			if ok && v != tt.want {
				t.Errorf("valid: got %v, want %v", v, tt.want)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	if got := SnapshotTopic("abc"); got != "debounced/abc/snapshot" {
		t.Errorf("snapshot topic: got %s", got)
	}
	if got := SystemTopic("abc"); got != "debounced/abc/system" {
		t.Errorf("system topic: got %s", got)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(Snapshot{Timestamp: time.Now(), Source: "stdin", Text: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.Published()
	if len(got) != 1 || got[0].Text != "x" {
		t.Fatalf("published: %+v", got)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.SetPublishError(errors.New("simulated error"))

	if err := f.Publish(Snapshot{Text: "x"}); err == nil {
		t.Error("expected error")
	}
	if len(f.Published()) != 0 {
		t.Errorf("expected nothing recorded on error, got %d", len(f.Published()))
	}
}

func TestFakePublisherClose(t *testing.T) {
	f := NewFakePublisher()

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(Snapshot{Text: "x"})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.PublishError = errors.New("error")
	f.Connected = true

	f.Reset()

	if len(f.Published()) != 0 || len(f.Payloads) != 0 {
		t.Error("snapshots should be cleared")
	}
	if len(f.System()) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("system events should be cleared")
	}
	if f.Closed || f.Connected || f.PublishError != nil {
		t.Error("flags should be reset")
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadWill(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No timestamp for the will: it is formatted once at connect time.
	expected := `{"system":{"event":"OFFLINE","reason":"LWT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "STARTUP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := parsed["system"]["reason"]; exists {
		t.Error("reason field should be omitted for startup events")
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)

	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through, got %s", payload)
	}
}

func TestPublishersImplementInterfaces(t *testing.T) {
	var _ Publisher = NewFakePublisher()
	var _ ConnectionStatus = NewFakePublisher()
	var _ Publisher = &RealPublisher{}
	var _ ConnectionStatus = &RealPublisher{}
}

func TestReconnectedMsg(t *testing.T) {
	msg, err := reconnectedMsg("abc", time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.topic != "debounced/abc/system" {
		t.Errorf("topic: got %q", msg.topic)
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("expected QoS 1, not retained: %+v", msg)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(msg.payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "RECONNECTED" || parsed.System.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("payload: %s", msg.payload)
	}
}

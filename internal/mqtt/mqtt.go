// Package mqtt publishes settled snapshots and daemon lifecycle events to an
// MQTT broker, with a fake publisher for tests.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicPrefix is the root of every topic the daemon publishes to.
const TopicPrefix = "debounced"

// SnapshotTopic is the topic settled snapshots of instance id go to.
func SnapshotTopic(id string) string {
	return TopicPrefix + "/" + id + "/snapshot"
}

// SystemTopic is the topic lifecycle events of instance id go to.
func SystemTopic(id string) string {
	return TopicPrefix + "/" + id + "/system"
}

// Publisher publishes to MQTT.
type Publisher interface {
	// Publish sends a settled snapshot to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(snap Snapshot) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Snapshot is one settled input value handed to persistence.
type Snapshot struct {
	Timestamp time.Time
	Source    string // "stdin" or "gpio"
	Text      string
	// Valid is nil when no validation result exists for Text yet.
	Valid *bool
	Seq   uint64
}

// SystemEvent represents a lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // if set, FormatSystemPayload returns it unchanged
	Retained   bool
}

// Payload is the JSON message for a snapshot.
type Payload struct {
	Snapshot SnapshotPayload `json:"snapshot"`
}

// SnapshotPayload contains the snapshot details.
type SnapshotPayload struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Text      string `json:"text"`
	Valid     *bool  `json:"valid,omitempty"`
	Seq       uint64 `json:"seq"`
}

// FormatPayload creates the JSON payload for a snapshot.
func FormatPayload(snap Snapshot) ([]byte, error) {
	return json.Marshal(Payload{
		Snapshot: SnapshotPayload{
			Timestamp: snap.Timestamp.UTC().Format(time.RFC3339),
			Source:    snap.Source,
			Text:      snap.Text,
			Valid:     snap.Valid,
			Seq:       snap.Seq,
		},
	})
}

// SystemPayload is the JSON message for simple lifecycle events (LWT,
// RECONNECTED) that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{Event: event.Event, Reason: event.Reason}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// Package mqtt publishes timer events to an MQTT broker and receives control
// commands from it, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/sandglass/internal/cycle"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "factory/sandglass"

// Topics are the MQTT topics derived from a prefix.
type Topics struct {
	Events   string
	System   string
	Commands string
}

// NewTopics derives the topics under prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events:   prefix + "/events",
		System:   prefix + "/system",
		Commands: prefix + "/commands",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a timer event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event cycle.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
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

// WillPayload is the retained last-will message the broker publishes when
// the daemon disappears without a clean shutdown.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	return data
}

// ChangeFilter passes the events worth publishing: movements, state
// changes, automatic pause toggles and revised movement dates. Per-second
// countdown ticks are dropped.
type ChangeFilter struct {
	last *cycle.Snapshot
}

// Pass reports whether ev differs enough from the last passed event.
func (f *ChangeFilter) Pass(ev cycle.Event) bool {
	s := ev.Snapshot
	if ev.Type == cycle.EventMovement || f.last == nil || changed(*f.last, s) {
		f.last = &s
		return true
	}
	return false
}

func changed(a, b cycle.Snapshot) bool {
	return a.State != b.State ||
		a.PauseAutomatique != b.PauseAutomatique ||
		!a.DateMove.Equal(b.DateMove) ||
		!a.DateMoveNext.Equal(b.DateMoveNext)
}

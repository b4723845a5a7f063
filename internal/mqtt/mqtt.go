// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/harvest-engine/internal/logic"
)

// Topic is the MQTT topic for engine transition events.
const Topic = "agri/harvest-engine/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "agri/harvest-engine/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an engine event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// OutboxStatus reports messages held while the broker was unreachable.
type OutboxStatus interface {
	Held() (pending int, dropped uint64)
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Engine EnginePayload `json:"engine"`
}

// EnginePayload contains the transition and the status word it came from.
type EnginePayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Alert      string `json:"alert"`
	Ready      bool   `json:"ready"`
	Mode       string `json:"mode"`
	Prediction string `json:"prediction"`
	StatusBits uint8  `json:"status_bits"`
	Word       uint8  `json:"word"`
}

// FormatPayload creates the JSON payload for an engine event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Engine: EnginePayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      string(event.Type),
			Alert:      string(event.Alert),
			Ready:      event.Word.Ready,
			Mode:       event.Mode.String(),
			Prediction: string(event.Prediction),
			StatusBits: event.Word.StatusBits,
			Word:       event.Word.Byte(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (last will, reconnect) that don't carry a full status snapshot.
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

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is registered with the broker at connect time and published by
// it if the daemon drops off without a clean disconnect. The broker sends it
// later, so it carries no timestamp.
func WillPayload() []byte {
	b, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	return b
}

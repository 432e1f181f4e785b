package main

import (
	"encoding/json"
	"fmt"
)

// Event is one notification fanned out to connected clients. Events are
// immutable once stamped by the dispatcher; the same value may sit in
// many client queues at once.
type Event struct {
	Type      string          `json:"type"`
	Subject   string          `json:"subject,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Lifecycle event types emitted by the hub itself.
const (
	eventClientConnected    = "client-connected"
	eventClientDisconnected = "client-disconnected"
)

func newEvent(eventType string, payload json.RawMessage) *Event {
	return &Event{
		Type:    eventType,
		Payload: payload,
	}
}

func lifecycleEvent(eventType, clientID string, connected int) *Event {
	payload := fmt.Sprintf(`{"client_id":%q,"connected":%d}`, clientID, connected)
	return newEvent(eventType, json.RawMessage(payload))
}

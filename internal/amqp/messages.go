package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"timetrack/internal/events"
)

// schemaVersion is bumped whenever EventMessage changes incompatibly.
const schemaVersion = 1

// EventMessage is the wire form of a domain event. It carries only the
// entity id; the worker reloads the record from the database.
type EventMessage struct {
	ID         string      `json:"id"`
	Type       events.Type `json:"type"`
	EntityID   string      `json:"entityId"`
	OccurredAt time.Time   `json:"occurredAt"`
	Version    int         `json:"version"`
}

func NewEventMessage(e events.Event) *EventMessage {
	occurred := e.Timestamp
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return &EventMessage{
		ID:         e.ID,
		Type:       e.Type,
		EntityID:   e.EntityID,
		OccurredAt: occurred,
		Version:    schemaVersion,
	}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Event converts the message back into a domain event.
func (m *EventMessage) Event() events.Event {
	return events.Event{
		ID:        m.ID,
		Type:      m.Type,
		EntityID:  m.EntityID,
		Timestamp: m.OccurredAt,
	}
}

func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message %q has no event type", msg.ID)
	}
	if msg.Version > schemaVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return &msg, nil
}

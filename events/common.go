package events

import (
	"encoding/json"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const eventIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// BaseEvent is embedded by every protocol event.
type BaseEvent struct {
	EventID        string  `json:"event_id"`
	Type           string  `json:"type"`
	PreviousItemID *string `json:"previous_item_id,omitempty"`
}

// NewEventID returns a client event id in the server's "evt_" style.
func NewEventID() string {
	return "evt_" + nanoid.MustGenerate(eventIDAlphabet, 21)
}

func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID: NewEventID(),
		Type:    eventType,
	}
}

// Parse decodes data into a new T.
func Parse[T any](data []byte) (*T, error) {
	var x T
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	return &x, nil
}

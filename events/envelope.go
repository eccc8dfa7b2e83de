package events

import (
	"encoding/json"
	"fmt"
)

// ServerEvent is a raw inbound protocol event. Payload keeps the full JSON
// body so the typed view can be parsed on demand.
type ServerEvent struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id,omitempty"`
	Payload json.RawMessage `json:"-"`
}

// ParseServerEvent reads the type and event id of data and keeps a copy of
// the full body.
func ParseServerEvent(data []byte) (*ServerEvent, error) {
	var x struct {
		Type    string `json:"type"`
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	if x.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	return &ServerEvent{
		Type:    x.Type,
		EventID: x.EventID,
		Payload: payload,
	}, nil
}

// InvalidFrame is an inbound frame that could not be read as a server event.
type InvalidFrame struct {
	Data []byte
	Err  error
}

// Envelope is one entry of a transport feed: a server event, an unreadable
// frame, or a lifecycle fault.
type Envelope struct {
	Server  *ServerEvent
	Invalid *InvalidFrame
	Fault   error
}

func Server(evt *ServerEvent) Envelope {
	return Envelope{Server: evt}
}

// Invalid wraps a frame that failed [ParseServerEvent]. data is copied.
func Invalid(data []byte, err error) Envelope {
	return Envelope{Invalid: &InvalidFrame{Data: append([]byte(nil), data...), Err: err}}
}

func Fault(err error) Envelope {
	return Envelope{Fault: err}
}

// Type returns the server event type, "invalid" or "fault".
func (e Envelope) Type() string {
	switch {
	case e.Server != nil:
		return e.Server.Type
	case e.Invalid != nil:
		return TypeInvalid
	}
	return TypeFault
}

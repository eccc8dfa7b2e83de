package events

import "fmt"

type AudioFormat string

const (
	AudioFormatPCM16 AudioFormat = "pcm16"
)

type ErrorEvent struct {
	BaseEvent
	ErrorDetail ErrorDetail `json:"error"`
}

func (e *ErrorEvent) Error() string {
	return e.ErrorDetail.Error()
}

// ErrorDetail holds the details of the error.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
	EventID string `json:"event_id"`
}

func (e *ErrorDetail) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type SessionCreatedEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

// ConversationItem is the inner “item” object.
type ConversationItem struct {
	ID      string                    `json:"id"`
	Object  string                    `json:"object,omitempty"`
	Type    string                    `json:"type"`
	Status  ItemStatus                `json:"status,omitempty"`
	Role    Role                      `json:"role,omitempty"`
	Content []ConversationItemContent `json:"content,omitempty"`
}

type ConversationItemContent struct {
	Type       ContentType `json:"type"`
	Text       *string     `json:"text,omitempty"`
	Transcript *string     `json:"transcript,omitempty"`
}

// ConversationItemCreatedEvent covers conversation.item.created and
// conversation.item.added.
type ConversationItemCreatedEvent struct {
	BaseEvent
	Item ConversationItem `json:"item"`
}

// ConversationItemDoneEvent covers conversation.item.done and
// response.output_item.done.
type ConversationItemDoneEvent struct {
	BaseEvent
	ResponseID  string           `json:"response_id,omitempty"`
	OutputIndex int              `json:"output_index,omitempty"`
	Item        ConversationItem `json:"item"`
}

// ContentDeltaEvent covers every incremental content event. Which of Delta's
// targets is meant depends on the event type.
type ContentDeltaEvent struct {
	BaseEvent
	ResponseID   string `json:"response_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ItemID       string `json:"item_id"`
	ContentIndex *int   `json:"content_index,omitempty"`
	Delta        string `json:"delta"`
}

// ContentDoneEvent covers every final content event. Transcription and
// audio transcript events carry Transcript, text events carry Text.
type ContentDoneEvent struct {
	BaseEvent
	ResponseID   string `json:"response_id,omitempty"`
	OutputIndex  int    `json:"output_index,omitempty"`
	ItemID       string `json:"item_id"`
	ContentIndex *int   `json:"content_index,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	Text         string `json:"text,omitempty"`
}

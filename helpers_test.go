package rtscribe

import (
	"encoding/json"

	"github.com/codewandler/rtscribe/events"
)

// serverEnv marshals v and wraps it as an inbound server event.
func serverEnv(v map[string]any) events.Envelope {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	evt, err := events.ParseServerEvent(data)
	if err != nil {
		panic(err)
	}
	return events.Server(evt)
}

func itemCreated(eventID, itemID string, role events.Role, prev string) events.Envelope {
	evt := map[string]any{
		"type":     events.TypeConversationItemCreated,
		"event_id": eventID,
		"item": map[string]any{
			"id":     itemID,
			"object": "realtime.item",
			"type":   "message",
			"status": "completed",
			"role":   role,
			"content": []map[string]any{
				{"type": contentTypeFor(role)},
			},
		},
	}
	if prev != "" {
		evt["previous_item_id"] = prev
	}
	return serverEnv(evt)
}

func contentTypeFor(role events.Role) events.ContentType {
	if role == events.RoleUser {
		return events.ContentTypeInputAudio
	}
	return events.ContentTypeText
}

func transcriptionDelta(eventID, itemID, delta string) events.Envelope {
	return serverEnv(map[string]any{
		"type":          events.TypeInputAudioTranscriptionDelta,
		"event_id":      eventID,
		"item_id":       itemID,
		"content_index": 0,
		"delta":         delta,
	})
}

func transcriptionCompleted(eventID, itemID, transcript string) events.Envelope {
	return serverEnv(map[string]any{
		"type":          events.TypeInputAudioTranscriptionCompleted,
		"event_id":      eventID,
		"item_id":       itemID,
		"content_index": 0,
		"transcript":    transcript,
	})
}

func textDelta(eventID, itemID, delta string) events.Envelope {
	return serverEnv(map[string]any{
		"type":          events.TypeResponseTextDelta,
		"event_id":      eventID,
		"response_id":   "resp_1",
		"item_id":       itemID,
		"output_index":  0,
		"content_index": 0,
		"delta":         delta,
	})
}

func outputItemDone(eventID, itemID string) events.Envelope {
	return serverEnv(map[string]any{
		"type":         events.TypeResponseOutputItemDone,
		"event_id":     eventID,
		"response_id":  "resp_1",
		"output_index": 0,
		"item": map[string]any{
			"id":     itemID,
			"type":   "message",
			"status": "completed",
			"role":   events.RoleAssistant,
		},
	})
}

package events

// Inbound event types the aggregator understands. Anything else is kept in
// the raw log only.
const (
	TypeError = "error"
	TypeFault = "fault"
	// TypeInvalid marks an inbound frame that was not a readable event.
	TypeInvalid = "invalid"

	TypeSessionCreated = "session.created"
	TypeSessionUpdated = "session.updated"

	TypeConversationItemCreated = "conversation.item.created"
	TypeConversationItemAdded   = "conversation.item.added"
	TypeConversationItemDone    = "conversation.item.done"

	TypeInputAudioTranscriptionDelta     = "conversation.item.input_audio_transcription.delta"
	TypeInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeInputAudioTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"

	TypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	TypeResponseAudioTranscriptDone  = "response.audio_transcript.done"
	TypeResponseTextDelta            = "response.text.delta"
	TypeResponseTextDone             = "response.text.done"
	TypeResponseOutputItemDone       = "response.output_item.done"

	TypeInputAudioBufferAppend = "input_audio_buffer.append"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type ItemStatus string

const (
	ItemStatusInProgress ItemStatus = "in_progress"
	ItemStatusCompleted  ItemStatus = "completed"
)

type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeInputText  ContentType = "input_text"
	ContentTypeInputAudio ContentType = "input_audio"
	ContentTypeAudio      ContentType = "audio"
)

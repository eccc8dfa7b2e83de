package events

type InputAudioBufferAppendEvent struct {
	BaseEvent
	Audio string `json:"audio"`
}

func NewInputAudioBufferAppend(audio string) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{
		BaseEvent: NewBaseEvent(TypeInputAudioBufferAppend),
		Audio:     audio,
	}
}

package rtscribe

import (
	"testing"

	"github.com/codewandler/rtscribe/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSessionConfig_TranscriptionForcesProfile(t *testing.T) {
	p := DefaultProfile()
	merged := MergeSessionConfig(p, SessionConfig{
		Model:        "gpt-4o-mini-realtime-preview",
		Modalities:   []Modality{ModalityAudio, ModalityText},
		Instructions: "chat with me",
		Voice:        "alloy",
		InputAudioTranscription: &events.InputAudioTranscription{
			Model:    "gpt-4o-transcribe",
			Language: "en",
		},
	})

	assert.Equal(t, "gpt-4o-mini-realtime-preview", merged.Model)
	assert.Equal(t, "alloy", merged.Voice)
	assert.Equal(t, []Modality{ModalityText}, merged.Modalities)
	assert.Equal(t, DefaultInstructions, merged.Instructions)
	require.NotNil(t, merged.InputAudioTranscription)
	assert.Equal(t, "whisper-1", merged.InputAudioTranscription.Model)
	assert.Equal(t, "ja", merged.InputAudioTranscription.Language)
}

func TestMergeSessionConfig_Conversation(t *testing.T) {
	p := DefaultProfile()
	p.Mode = ModeConversation

	merged := MergeSessionConfig(p, SessionConfig{
		Modalities:   []Modality{ModalityAudio},
		Instructions: "chat with me",
	})

	assert.Equal(t, DefaultModel, merged.Model)
	assert.Equal(t, []Modality{ModalityAudio}, merged.Modalities)
	assert.Equal(t, "chat with me", merged.Instructions)
	require.NotNil(t, merged.InputAudioTranscription)
	assert.Equal(t, "whisper-1", merged.InputAudioTranscription.Model)
}

func TestMergeSessionConfig_DoesNotAlias(t *testing.T) {
	p := DefaultProfile()
	merged := MergeSessionConfig(p, SessionConfig{})

	merged.Modalities[0] = ModalityAudio
	merged.InputAudioTranscription.Language = "en"

	assert.Equal(t, []Modality{ModalityText}, p.Defaults.Modalities)
	assert.Equal(t, "ja", p.Defaults.InputAudioTranscription.Language)
}

func TestSessionConfig_Validate(t *testing.T) {
	require.NoError(t, SessionConfig{Model: DefaultModel}.Validate())
	require.ErrorIs(t, SessionConfig{}.Validate(), ErrInvalidConfig)
	require.ErrorIs(t, SessionConfig{Model: DefaultModel, Modalities: []Modality{"video"}}.Validate(), ErrInvalidConfig)
}

func TestMode_IsValid(t *testing.T) {
	assert.True(t, ModeTranscription.IsValid())
	assert.True(t, ModeConversation.IsValid())
	assert.False(t, Mode("dictation").IsValid())
}

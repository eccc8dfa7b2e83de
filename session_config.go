package rtscribe

import (
	"fmt"
	"slices"

	"github.com/codewandler/rtscribe/events"
)

type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// Mode selects how the controller treats caller supplied session settings.
type Mode string

const (
	// ModeTranscription forces the profile's modalities, instructions and
	// input transcription over whatever the caller asked for.
	ModeTranscription Mode = "transcription"

	// ModeConversation uses the profile as defaults only.
	ModeConversation Mode = "conversation"
)

func (m Mode) IsValid() bool {
	return m == ModeTranscription || m == ModeConversation
}

const (
	DefaultModel        = "gpt-4o-realtime-preview-2024-12-17"
	DefaultInstructions = "You are a transcription service. Only transcribe what you hear without adding any response or commentary. Do not engage in conversation."
)

// SessionConfig is the body of a session create request.
type SessionConfig struct {
	Model                   string                          `json:"model"`
	Modalities              []Modality                      `json:"modalities,omitempty"`
	Instructions            string                          `json:"instructions,omitempty"`
	Voice                   string                          `json:"voice,omitempty"`
	InputAudioFormat        events.AudioFormat              `json:"input_audio_format,omitempty"`
	InputAudioTranscription *events.InputAudioTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           *events.TurnDetection           `json:"turn_detection,omitempty"`
}

func (c SessionConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model must not be empty", ErrInvalidConfig)
	}
	for _, m := range c.Modalities {
		if m != ModalityText && m != ModalityAudio {
			return fmt.Errorf("%w: unknown modality %q", ErrInvalidConfig, m)
		}
	}
	return nil
}

func (c SessionConfig) clone() SessionConfig {
	out := c
	out.Modalities = slices.Clone(c.Modalities)
	if c.InputAudioTranscription != nil {
		t := *c.InputAudioTranscription
		out.InputAudioTranscription = &t
	}
	if c.TurnDetection != nil {
		t := *c.TurnDetection
		out.TurnDetection = &t
	}
	return out
}

// Profile holds the controller side of session settings: Defaults are
// merged under the caller's config, and in transcription mode the
// transcription fields of Defaults are forced on top of it.
type Profile struct {
	Mode     Mode
	Defaults SessionConfig
}

// DefaultProfile returns the transcription-only profile: text responses,
// no commentary, Japanese whisper transcription of a business meeting.
func DefaultProfile() Profile {
	return Profile{
		Mode: ModeTranscription,
		Defaults: SessionConfig{
			Model:        DefaultModel,
			Modalities:   []Modality{ModalityText},
			Instructions: DefaultInstructions,
			InputAudioTranscription: &events.InputAudioTranscription{
				Model:    "whisper-1",
				Language: "ja",
				Prompt:   "これは日本語での商談の会話です",
			},
		},
	}
}

// MergeSessionConfig layers override over the profile defaults. In
// transcription mode modalities, instructions and input transcription are
// then reset to the profile values so a caller cannot turn transcription-only
// behaviour off.
func MergeSessionConfig(p Profile, override SessionConfig) SessionConfig {
	out := p.Defaults.clone()
	override = override.clone()

	if override.Model != "" {
		out.Model = override.Model
	}
	if len(override.Modalities) > 0 {
		out.Modalities = override.Modalities
	}
	if override.Instructions != "" {
		out.Instructions = override.Instructions
	}
	if override.Voice != "" {
		out.Voice = override.Voice
	}
	if override.InputAudioFormat != "" {
		out.InputAudioFormat = override.InputAudioFormat
	}
	if override.InputAudioTranscription != nil {
		out.InputAudioTranscription = override.InputAudioTranscription
	}
	if override.TurnDetection != nil {
		out.TurnDetection = override.TurnDetection
	}

	if p.Mode == ModeTranscription {
		forced := p.Defaults.clone()
		out.Modalities = forced.Modalities
		out.Instructions = forced.Instructions
		out.InputAudioTranscription = forced.InputAudioTranscription
	}

	return out
}

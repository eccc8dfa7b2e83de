// Package config provides the YAML configuration schema and loader for the
// rtscribe command.
package config

import (
	"log/slog"

	"github.com/codewandler/rtscribe"
	"github.com/codewandler/rtscribe/events"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a slog level. Unknown and empty values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure, loaded with [Load] or
// [LoadFromReader].
type Config struct {
	LogLevel LogLevel      `yaml:"log_level"`
	API      APIConfig     `yaml:"api"`
	Session  SessionConfig `yaml:"session"`
	Audio    AudioConfig   `yaml:"audio"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// APIConfig locates the realtime API and the key used to call it.
type APIConfig struct {
	// BaseURL is the REST base used for the session token exchange.
	BaseURL string `yaml:"base_url"`

	// RealtimeURL is the websocket endpoint.
	RealtimeURL string `yaml:"realtime_url"`

	// KeyEnv lists environment variables searched for the API key, in
	// order. Empty means the built-in list.
	KeyEnv []string `yaml:"key_env"`
}

// SessionConfig overrides the built-in transcription profile. Empty fields
// keep the profile value.
type SessionConfig struct {
	Mode                    rtscribe.Mode                  `yaml:"mode"`
	Model                   string                         `yaml:"model"`
	Modalities              []rtscribe.Modality            `yaml:"modalities"`
	Instructions            string                         `yaml:"instructions"`
	Voice                   string                         `yaml:"voice"`
	InputAudioTranscription *InputAudioTranscriptionConfig `yaml:"input_audio_transcription"`
}

type InputAudioTranscriptionConfig struct {
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Prompt   string `yaml:"prompt"`
}

// AudioConfig describes the PCM16 mono stream fed to the command.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	LatencyMS  int `yaml:"latency_ms"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Profile layers the session section over [rtscribe.DefaultProfile].
func (c *Config) Profile() rtscribe.Profile {
	p := rtscribe.DefaultProfile()
	s := c.Session

	if s.Mode != "" {
		p.Mode = s.Mode
	}
	if s.Model != "" {
		p.Defaults.Model = s.Model
	}
	if len(s.Modalities) > 0 {
		p.Defaults.Modalities = append([]rtscribe.Modality(nil), s.Modalities...)
	}
	if s.Instructions != "" {
		p.Defaults.Instructions = s.Instructions
	}
	if s.Voice != "" {
		p.Defaults.Voice = s.Voice
	}
	if t := s.InputAudioTranscription; t != nil {
		p.Defaults.InputAudioTranscription = &events.InputAudioTranscription{
			Model:    t.Model,
			Language: t.Language,
			Prompt:   t.Prompt,
		}
	}
	return p
}

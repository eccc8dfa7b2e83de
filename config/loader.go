package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/codewandler/rtscribe"
	"gopkg.in/yaml.v3"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = rtscribe.DefaultBaseURL
	}
	if cfg.API.RealtimeURL == "" {
		cfg.API.RealtimeURL = "wss://api.openai.com/v1/realtime"
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 24000
	}
	if cfg.Audio.LatencyMS == 0 {
		cfg.Audio.LatencyMS = 200
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if err := validateURL("api.base_url", cfg.API.BaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("api.realtime_url", cfg.API.RealtimeURL, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}
	for i, name := range cfg.API.KeyEnv {
		if name == "" {
			errs = append(errs, fmt.Errorf("api.key_env[%d] must not be empty", i))
		}
	}

	s := cfg.Session
	if s.Mode != "" && !s.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("session.mode %q is invalid; valid values: transcription, conversation", s.Mode))
	}
	for i, m := range s.Modalities {
		if m != rtscribe.ModalityText && m != rtscribe.ModalityAudio {
			errs = append(errs, fmt.Errorf("session.modalities[%d] %q is invalid; valid values: text, audio", i, m))
		}
	}
	if t := s.InputAudioTranscription; t != nil && t.Model == "" {
		errs = append(errs, errors.New("session.input_audio_transcription.model is required"))
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 48000]", cfg.Audio.SampleRate))
	}
	if cfg.Audio.LatencyMS < 10 || cfg.Audio.LatencyMS > 2000 {
		errs = append(errs, fmt.Errorf("audio.latency_ms %d is out of range [10, 2000]", cfg.Audio.LatencyMS))
	}

	return errors.Join(errs...)
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is invalid: %w", field, raw, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s %q must be an absolute %s URL", field, raw, schemes[len(schemes)-1])
}

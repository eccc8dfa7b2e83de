package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codewandler/rtscribe"
	"github.com/codewandler/rtscribe/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, config.LogInfo, cfg.LogLevel)
	assert.Equal(t, rtscribe.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 24000, cfg.Audio.SampleRate)
	assert.Equal(t, rtscribe.DefaultProfile(), cfg.Profile())
}

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: debug
api:
  base_url: http://localhost:8080/v1
  realtime_url: ws://localhost:8080/v1/realtime
  key_env: [MY_KEY]
session:
  mode: conversation
  model: gpt-4o-mini-realtime-preview
  modalities: [text, audio]
  instructions: be brief
  input_audio_transcription:
    model: whisper-1
    language: en
audio:
  sample_rate: 16000
  latency_ms: 100
metrics:
  listen_addr: ":9090"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel.Level())
	assert.Equal(t, []string{"MY_KEY"}, cfg.API.KeyEnv)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)

	p := cfg.Profile()
	assert.Equal(t, rtscribe.ModeConversation, p.Mode)
	assert.Equal(t, "gpt-4o-mini-realtime-preview", p.Defaults.Model)
	assert.Equal(t, []rtscribe.Modality{rtscribe.ModalityText, rtscribe.ModalityAudio}, p.Defaults.Modalities)
	assert.Equal(t, "be brief", p.Defaults.Instructions)
	require.NotNil(t, p.Defaults.InputAudioTranscription)
	assert.Equal(t, "en", p.Defaults.InputAudioTranscription.Language)
	assert.Empty(t, p.Defaults.InputAudioTranscription.Prompt)
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("sessoin:\n  model: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessoin")
}

func TestValidate_JoinsErrors(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: verbose
api:
  realtime_url: https://api.openai.com/v1/realtime
session:
  mode: dictation
  modalities: [video]
  input_audio_transcription:
    language: en
audio:
  sample_rate: 4000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	for _, want := range []string{
		"log_level",
		"api.realtime_url",
		"session.mode",
		"session.modalities[0]",
		"session.input_audio_transcription.model",
		"audio.sample_rate",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rtscribe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio:\n  sample_rate: 48000\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

package rtscribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codewandler/rtscribe/events"
	"github.com/codewandler/rtscribe/internal/observe"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Token is a short-lived, single-use session credential.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenExchanger trades a long-lived API key for a session token.
type TokenExchanger interface {
	Exchange(ctx context.Context, cfg SessionConfig, credential string) (Token, error)
}

// HTTPTokenExchanger creates sessions via POST {BaseURL}/realtime/sessions.
// It keeps no state between calls and never retries.
type HTTPTokenExchanger struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *observe.Metrics
}

func (x *HTTPTokenExchanger) endpoint() string {
	base := x.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/realtime/sessions"
}

func (x *HTTPTokenExchanger) logger() *slog.Logger {
	if x.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return x.Logger
}

func (x *HTTPTokenExchanger) metrics() *observe.Metrics {
	if x.Metrics == nil {
		return observe.Default()
	}
	return x.Metrics
}

func (x *HTTPTokenExchanger) Exchange(ctx context.Context, cfg SessionConfig, credential string) (tok Token, err error) {
	if credential == "" {
		return Token{}, ErrMissingCredential
	}
	if err := cfg.Validate(); err != nil {
		return Token{}, err
	}

	started := time.Now()
	status := "ok"
	defer func() {
		x.metrics().RecordTokenExchange(ctx, status, time.Since(started).Seconds())
	}()

	body, err := json.Marshal(cfg)
	if err != nil {
		status = "transport_error"
		return Token{}, fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.endpoint(), bytes.NewReader(body))
	if err != nil {
		status = "transport_error"
		return Token{}, fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", credential))
	req.Header.Set("Content-Type", "application/json")

	client := x.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		status = "transport_error"
		return Token{}, fmt.Errorf("create session: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		status = "transport_error"
		return Token{}, fmt.Errorf("read session response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		status = "http_error"
		x.logger().Error("failed to create session", slog.Int("status", res.StatusCode), slog.String("body", string(data)))
		return Token{}, &TokenExchangeError{StatusCode: res.StatusCode, Body: string(data)}
	}

	var session events.Session
	if err := json.Unmarshal(data, &session); err != nil {
		status = "malformed"
		return Token{}, &MalformedResponseError{Reason: "invalid json", Err: err}
	}

	x.logSession(&session)

	if session.ClientSecret == nil || session.ClientSecret.Value == "" {
		status = "malformed"
		x.logger().Error("client secret not found in response", slog.String("body", string(data)))
		return Token{}, &MalformedResponseError{Reason: "client_secret.value missing"}
	}

	tok = Token{Value: session.ClientSecret.Value}
	if session.ClientSecret.ExpiresAt > 0 {
		tok.ExpiresAt = time.Unix(session.ClientSecret.ExpiresAt, 0)
	}
	return tok, nil
}

func (x *HTTPTokenExchanger) logSession(s *events.Session) {
	instructions := "Not available"
	if s.Instructions != "" {
		instructions = truncate(s.Instructions, 50) + "..."
	}
	model, language := "default", "auto detect"
	if t := s.InputAudioTranscription; t != nil {
		if t.Model != "" {
			model = t.Model
		}
		if t.Language != "" {
			language = t.Language
		}
	}
	x.logger().Info("session created",
		slog.String("session_id", s.ID),
		slog.Any("modalities", s.Modalities),
		slog.String("instructions", instructions),
		slog.String("transcription_model", model),
		slog.String("transcription_language", language),
	)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package transport

import (
	"log/slog"
	"time"
)

const (
	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"
)

type config struct {
	url         string
	model       string
	sampleRate  int
	latencyMS   int
	dialTimeout time.Duration
	feedSize    int
	logger      *slog.Logger
}

func (c *config) latency() time.Duration {
	return time.Duration(c.latencyMS) * time.Millisecond
}

type Option func(*config)

// WithURL overrides the realtime websocket endpoint.
func WithURL(url string) Option {
	return func(c *config) {
		c.url = url
	}
}

func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithSampleRate sets the rate of the PCM16 written to the transport.
func WithSampleRate(sr int) Option {
	return func(c *config) {
		c.sampleRate = sr
	}
}

// WithLatency sets the uplink chunk length in milliseconds.
func WithLatency(latencyMS int) Option {
	return func(c *config) {
		c.latencyMS = latencyMS
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *config) {
		c.dialTimeout = d
	}
}

// WithFeedSize sets the buffer size of the inbound event feed.
func WithFeedSize(n int) Option {
	return func(c *config) {
		c.feedSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func WithOptions(opts ...Option) Option {
	return func(c *config) {
		for _, opt := range opts {
			opt(c)
		}
	}
}

func withDefaults() Option {
	return WithOptions(
		WithURL(DefaultURL),
		WithModel(DefaultModel),
		WithSampleRate(ServerSampleRate),
		WithLatency(200),
		WithDialTimeout(10*time.Second),
		WithFeedSize(256),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
}

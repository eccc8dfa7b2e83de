package rtscribe

import (
	"log/slog"
	"net/http"

	"github.com/codewandler/rtscribe/events"
	"github.com/codewandler/rtscribe/internal/observe"
	"go.opentelemetry.io/otel/metric"
)

type controllerConfig struct {
	logger      *slog.Logger
	credentials CredentialResolver
	exchanger   TokenExchanger
	baseURL     string
	httpClient  *http.Client
	profile     Profile
	metrics     *observe.Metrics

	onStatus       func(Status)
	onConversation func(*Conversation)
	onEvent        func(events.Envelope)
	onSessionEnded func(error)
}

type Option func(*controllerConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(o *controllerConfig) {
		o.logger = logger
	}
}

func WithDefaultLogger() Option {
	return WithLogger(slog.Default())
}

func WithCredentials(r CredentialResolver) Option {
	return func(o *controllerConfig) {
		o.credentials = r
	}
}

func WithKey(apiKey string) Option {
	return WithCredentials(StaticCredential(apiKey))
}

func WithEnvKey(vars ...string) Option {
	return WithCredentials(EnvCredentials{Vars: vars})
}

// WithTokenExchanger replaces the HTTP exchanger. WithBaseURL and
// WithHTTPClient have no effect afterwards.
func WithTokenExchanger(x TokenExchanger) Option {
	return func(o *controllerConfig) {
		o.exchanger = x
	}
}

// WithBaseURL sets the REST base URL used to create sessions.
func WithBaseURL(url string) Option {
	return func(o *controllerConfig) {
		o.baseURL = url
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *controllerConfig) {
		o.httpClient = c
	}
}

func WithProfile(p Profile) Option {
	return func(o *controllerConfig) {
		o.profile = p
	}
}

func WithMode(m Mode) Option {
	return func(o *controllerConfig) {
		o.profile.Mode = m
	}
}

// WithMeterProvider records controller metrics on mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *controllerConfig) {
		m, err := observe.New(mp)
		if err != nil {
			o.logger.Error("failed to create metrics, using global provider", slog.Any("err", err))
			return
		}
		o.metrics = m
	}
}

// WithStatusHandler is called after every status transition. It runs on the
// goroutine that caused the transition and must not call Start.
func WithStatusHandler(h func(Status)) Option {
	return func(o *controllerConfig) {
		o.onStatus = h
	}
}

// WithConversationHandler receives a new snapshot after each store change.
func WithConversationHandler(h func(*Conversation)) Option {
	return func(o *controllerConfig) {
		o.onConversation = h
	}
}

// WithEventHandler receives every raw inbound event.
func WithEventHandler(h func(events.Envelope)) Option {
	return func(o *controllerConfig) {
		o.onEvent = h
	}
}

// WithSessionEndedHandler is called when a recording session ends because
// of a transport fault, not when Stop is called.
func WithSessionEndedHandler(h func(error)) Option {
	return func(o *controllerConfig) {
		o.onSessionEnded = h
	}
}

func WithOptions(opts ...Option) Option {
	return func(o *controllerConfig) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

func withDefaults() Option {
	return WithOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithProfile(DefaultProfile()),
		WithEnvKey(),
	)
}

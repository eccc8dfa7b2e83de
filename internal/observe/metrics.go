// Package observe holds the OpenTelemetry instruments recorded by the
// session controller, the token exchanger and the event aggregator.
//
// Instruments are created from a [metric.MeterProvider]. [Default] uses the
// global provider; tests should build their own with [New] and a manual
// reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/codewandler/rtscribe"

// Metrics holds all instruments. The OTel types handle their own locking.
type Metrics struct {
	// TokenExchanges counts session token requests by status
	// ("ok", "http_error", "malformed", "transport_error").
	TokenExchanges metric.Int64Counter

	// TokenExchangeDuration tracks the latency of the session create call.
	TokenExchangeDuration metric.Float64Histogram

	// SessionStarts counts start attempts by result.
	SessionStarts metric.Int64Counter

	// ActiveSessions is 1 while a controller is recording.
	ActiveSessions metric.Int64UpDownCounter

	// SessionFaults counts transport faults that ended a session.
	SessionFaults metric.Int64Counter

	// EventsReceived counts inbound events by type.
	EventsReceived metric.Int64Counter

	// EventsDropped counts events the aggregator rejected, by reason.
	EventsDropped metric.Int64Counter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// New creates all instruments on mp.
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TokenExchanges, err = m.Int64Counter("rtscribe.token.exchanges",
		metric.WithDescription("Session token requests by status."),
	); err != nil {
		return nil, err
	}
	if met.TokenExchangeDuration, err = m.Float64Histogram("rtscribe.token.duration",
		metric.WithDescription("Latency of the session token request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionStarts, err = m.Int64Counter("rtscribe.session.starts",
		metric.WithDescription("Session start attempts by result."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("rtscribe.session.active",
		metric.WithDescription("Number of recording sessions."),
	); err != nil {
		return nil, err
	}
	if met.SessionFaults, err = m.Int64Counter("rtscribe.session.faults",
		metric.WithDescription("Transport faults that ended a session."),
	); err != nil {
		return nil, err
	}
	if met.EventsReceived, err = m.Int64Counter("rtscribe.aggregator.events",
		metric.WithDescription("Inbound protocol events by type."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("rtscribe.aggregator.dropped",
		metric.WithDescription("Events dropped by the aggregator, by reason."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level Metrics built on the global meter
// provider. Panics if instrument creation fails.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = New(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordTokenExchange(ctx context.Context, status string, seconds float64) {
	m.TokenExchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.TokenExchangeDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordSessionStart(ctx context.Context, result string) {
	m.SessionStarts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.EventsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

func (m *Metrics) RecordDrop(ctx context.Context, reason string) {
	m.EventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

package rtscribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codewandler/rtscribe/events"
	"github.com/codewandler/rtscribe/internal/observe"
)

type Status int

const (
	// StatusUnavailable means no credential has been found yet.
	StatusUnavailable Status = iota
	StatusStopped
	StatusRecording
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusStopped:
		return "stopped"
	case StatusRecording:
		return "recording"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

var errFeedClosed = errors.New("event feed closed")

const teardownTimeout = 5 * time.Second

// Controller runs at most one realtime session at a time. It exchanges the
// API key for a session token, starts the transport and folds the inbound
// feed into the conversation store. All methods are safe for concurrent use.
type Controller struct {
	config    *controllerConfig
	transport Transport
	agg       *Aggregator
	logger    *slog.Logger
	metrics   *observe.Metrics

	mu       sync.Mutex
	status   Status
	starting bool
	// gen is bumped by every Stop and forced end, invalidating any start or
	// drain loop begun under an older value.
	gen     uint64
	cancel  context.CancelFunc
	drained chan struct{}
	// teardown is closed once the last Stop or forced end has stopped the
	// transport. Start does not touch the transport before that.
	teardown chan struct{}
}

func New(transport Transport, opts ...Option) *Controller {
	config := &controllerConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	metrics := config.metrics
	if metrics == nil {
		metrics = observe.Default()
	}
	if config.exchanger == nil {
		config.exchanger = &HTTPTokenExchanger{
			BaseURL:    config.baseURL,
			HTTPClient: config.httpClient,
			Logger:     config.logger,
			Metrics:    metrics,
		}
	}

	return &Controller{
		config:    config,
		transport: transport,
		logger:    config.logger,
		metrics:   metrics,
		agg: NewAggregator(
			WithAggregatorLogger(config.logger),
			WithAggregatorMetrics(metrics),
		),
		status: StatusUnavailable,
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Conversation returns the latest snapshot of the current or last session.
func (c *Controller) Conversation() *Conversation {
	return c.agg.Conversation()
}

// Transcript returns the user-side transcript of the current or last
// session.
func (c *Controller) Transcript() string {
	return Transcript(c.agg.Conversation())
}

// Events returns a copy of the raw event log of the current or last session.
func (c *Controller) Events() []events.Envelope {
	return c.agg.Events()
}

func (c *Controller) Stats() Stats {
	return c.agg.Stats()
}

// Refresh looks up the credential and moves an unavailable controller to
// stopped once one is found. It returns the resulting status.
func (c *Controller) Refresh(ctx context.Context) (Status, error) {
	key, err := c.config.credentials.Resolve(ctx)
	if err != nil {
		return c.Status(), fmt.Errorf("resolve credential: %w", err)
	}

	c.mu.Lock()
	changed := false
	if key != "" && c.status == StatusUnavailable {
		c.status = StatusStopped
		changed = true
	}
	status := c.status
	c.mu.Unlock()

	if changed {
		c.notifyStatus(status)
	}
	return status, nil
}

// Start exchanges the credential for a session token, starts the transport
// and switches to recording. On any failure the controller stays stopped and
// the error is returned. A Stop that arrives while Start is in flight wins:
// the transport is torn down and ErrStartCanceled is returned.
func (c *Controller) Start(ctx context.Context, cfg SessionConfig) error {
	c.mu.Lock()
	if c.status == StatusRecording {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	if c.starting {
		c.mu.Unlock()
		return ErrStartInProgress
	}
	c.starting = true
	gen := c.gen
	teardown := c.teardown
	c.mu.Unlock()

	err := c.awaitTeardown(ctx, teardown)
	if err == nil {
		err = c.start(ctx, gen, cfg)
	}

	c.mu.Lock()
	c.starting = false
	c.mu.Unlock()

	return err
}

// awaitTeardown blocks until a previous session has released the transport.
func (c *Controller) awaitTeardown(ctx context.Context, teardown <-chan struct{}) error {
	if teardown == nil {
		return nil
	}
	select {
	case <-teardown:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for previous session to stop: %w", ctx.Err())
	}
}

func (c *Controller) start(ctx context.Context, gen uint64, cfg SessionConfig) error {
	key, err := c.config.credentials.Resolve(ctx)
	if err != nil {
		c.metrics.RecordSessionStart(ctx, "missing_credential")
		return fmt.Errorf("resolve credential: %w", err)
	}
	if key == "" {
		c.metrics.RecordSessionStart(ctx, "missing_credential")
		return ErrMissingCredential
	}

	merged := MergeSessionConfig(c.config.profile, cfg)
	if err := merged.Validate(); err != nil {
		c.metrics.RecordSessionStart(ctx, "invalid_config")
		c.settle()
		return err
	}

	c.logger.Debug("starting session", slog.Any("session_request", merged))

	tok, err := c.config.exchanger.Exchange(ctx, merged, key)
	if err != nil {
		c.metrics.RecordSessionStart(ctx, "token_error")
		c.settle()
		return err
	}

	feed, err := c.transport.Start(ctx, func(context.Context) (string, error) {
		return tok.Value, nil
	})
	if err != nil {
		c.metrics.RecordSessionStart(ctx, "transport_error")
		c.logger.Error("error starting session", slog.Any("err", err))
		c.settle()
		return fmt.Errorf("start transport: %w", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.metrics.RecordSessionStart(ctx, "canceled")
		c.stopTransport()
		c.settle()
		return ErrStartCanceled
	}

	c.agg.Reset()
	sessCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.drained = done
	c.status = StatusRecording
	c.mu.Unlock()

	c.metrics.RecordSessionStart(ctx, "ok")
	c.metrics.ActiveSessions.Add(ctx, 1)
	c.logger.Info("session recording", slog.String("model", merged.Model))
	c.notifyStatus(StatusRecording)
	c.notifyConversation(c.agg.Conversation())

	go c.drain(sessCtx, gen, feed, done)

	return nil
}

// settle moves a controller that found its credential to stopped after a
// failed start.
func (c *Controller) settle() {
	c.mu.Lock()
	changed := c.status == StatusUnavailable
	if changed {
		c.status = StatusStopped
	}
	c.mu.Unlock()
	if changed {
		c.notifyStatus(StatusStopped)
	}
}

// Stop ends the active session. It always succeeds: transport errors are
// logged and the controller is stopped afterwards. Stop on a stopped
// controller does nothing. A Start issued while Stop is tearing down waits
// until the transport has been stopped.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	if c.status != StatusRecording {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusStopped
	cancel, done := c.cancel, c.drained
	c.cancel, c.drained = nil, nil
	teardown := make(chan struct{})
	c.teardown = teardown
	c.mu.Unlock()
	defer close(teardown)

	if cancel != nil {
		cancel()
	}
	if err := c.transport.Stop(ctx); err != nil {
		c.logger.Warn("transport stop failed", slog.Any("err", err))
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			c.logger.Warn("event drain did not finish before stop deadline", slog.Any("err", ctx.Err()))
		}
	}

	c.metrics.ActiveSessions.Add(ctx, -1)
	c.logger.Info("session stopped")
	c.notifyStatus(StatusStopped)
	return nil
}

func (c *Controller) stopTransport() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := c.transport.Stop(ctx); err != nil {
		c.logger.Warn("transport stop failed", slog.Any("err", err))
	}
}

// drain is the only writer of the conversation store while a session runs.
// Events are folded under c.mu and only while gen is current, so a drain
// that outlives its Stop never touches the next session's store.
func (c *Controller) drain(ctx context.Context, gen uint64, feed <-chan events.Envelope, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-feed:
			if !ok {
				c.end(gen, &TransportFaultError{Err: errFeedClosed})
				return
			}

			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			changed, _ := c.agg.Apply(env)
			conv := c.agg.Conversation()
			c.mu.Unlock()

			if h := c.config.onEvent; h != nil {
				h(env)
			}
			if changed {
				c.logger.Debug("conversation updated", slog.Int("items", conv.Len()))
				c.notifyConversation(conv)
			}

			if env.Fault != nil {
				c.end(gen, &TransportFaultError{Err: env.Fault})
				return
			}
		}
	}
}

// end force-stops the session started under gen after a transport fault.
func (c *Controller) end(gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen || c.status != StatusRecording {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.status = StatusStopped
	cancel := c.cancel
	c.cancel, c.drained = nil, nil
	teardown := make(chan struct{})
	c.teardown = teardown
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.stopTransport()

	ctx := context.Background()
	c.metrics.SessionFaults.Add(ctx, 1)
	c.metrics.ActiveSessions.Add(ctx, -1)
	c.logger.Error("session ended", slog.Any("err", cause))

	c.notifyStatus(StatusStopped)
	// released before the handler so it may start a new session
	close(teardown)
	if h := c.config.onSessionEnded; h != nil {
		h(cause)
	}
}

func (c *Controller) notifyStatus(s Status) {
	if h := c.config.onStatus; h != nil {
		h(s)
	}
}

func (c *Controller) notifyConversation(conv *Conversation) {
	if h := c.config.onConversation; h != nil {
		h(conv)
	}
}

// Package transport connects a realtime session over a websocket and streams
// microphone audio into it.
package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codewandler/rtscribe/events"
	"github.com/codewandler/rtscribe/internal/websocket"
	"github.com/smallnest/ringbuffer"
)

// closeTimeout bounds the wait for the server to answer a close frame.
const closeTimeout = 2 * time.Second

var (
	ErrNotStarted       = errors.New("transport not started")
	ErrAlreadyStarted   = errors.New("transport already started")
	ErrConnectionClosed = errors.New("connection closed by server")
)

// Websocket is a realtime transport. Audio written to it is resampled to
// 24 kHz and sent as input_audio_buffer.append events; inbound text frames
// are forwarded on the feed returned by Start.
type Websocket struct {
	config *config

	mu   sync.Mutex
	sess *wsSession
}

type wsSession struct {
	ws       *websocket.Client
	cancel   context.CancelFunc
	uplink   *ringbuffer.RingBuffer
	writer   io.Writer
	stopping atomic.Bool
	done     chan struct{}
}

func NewWebsocket(opts ...Option) *Websocket {
	config := &config{}
	withDefaults()(config)
	WithOptions(opts...)(config)
	return &Websocket{config: config}
}

func (t *Websocket) endpoint() (string, error) {
	u, err := url.Parse(t.config.url)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	q := u.Query()
	q.Set("model", t.config.model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *Websocket) Start(ctx context.Context, token func(ctx context.Context) (string, error)) (<-chan events.Envelope, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess != nil {
		return nil, ErrAlreadyStarted
	}

	secret, err := token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session token: %w", err)
	}

	endpoint, err := t.endpoint()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Add("Authorization", fmt.Sprintf("Bearer %s", secret))
	headers.Add("OpenAI-Beta", "realtime=v1")

	sessCtx, cancel := context.WithCancel(context.Background())
	feed := make(chan events.Envelope, t.config.feedSize)
	logger := t.config.logger

	push := func(env events.Envelope) {
		select {
		case feed <- env:
		case <-sessCtx.Done():
		}
	}

	// ctx only bounds the dial; the connection itself lives on sessCtx.
	stopWatch := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			cancel()
		case <-stopWatch:
		}
	}()

	ws, err := websocket.Connect(sessCtx, websocket.ClientConfig{
		URL:         endpoint,
		DialTimeout: t.config.dialTimeout,
		Headers:     headers,
		Logger:      logger,
		OnText: func(data []byte) error {
			evt, err := events.ParseServerEvent(data)
			if err != nil {
				push(events.Invalid(data, fmt.Errorf("parse server event: %w", err)))
				return nil
			}
			push(events.Server(evt))
			return nil
		},
	})
	close(stopWatch)
	<-watched
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// canceling sessCtx closes the connection
		cancel()
		return nil, err
	}

	uplink := ringbuffer.New(chunkSize(ServerSampleRate, t.config.latency(), bytesPerSample, 1) * 8).SetBlocking(true)

	sess := &wsSession{
		ws:     ws,
		cancel: cancel,
		uplink: uplink,
		writer: &ResampleWriter{
			Sink:     uplink,
			FromRate: t.config.sampleRate,
			ToRate:   ServerSampleRate,
		},
		done: make(chan struct{}),
	}

	go func() {
		defer close(sess.done)
		<-ws.Done()
		if !sess.stopping.Load() {
			cause := ws.Err()
			if cause == nil {
				cause = ErrConnectionClosed
			}
			logger.Error("realtime connection lost", slog.Any("err", cause))
			push(events.Fault(cause))
		}
		uplink.CloseWithError(io.EOF)
		close(feed)
	}()

	go t.pumpAudio(sess)

	t.sess = sess
	return feed, nil
}

// pumpAudio sends buffered microphone audio until the uplink is closed.
func (t *Websocket) pumpAudio(sess *wsSession) {
	r := NewAudioChunkReader(sess.uplink, ServerSampleRate, t.config.latency())
	buf := make([]byte, r.ChunkSize())
	logger := t.config.logger

	for {
		n, err := r.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Error("failed to read from uplink buffer", slog.Any("err", err))
			}
			return
		}

		evt := events.NewInputAudioBufferAppend(base64.StdEncoding.EncodeToString(buf[:n]))
		if err := sess.ws.WriteJSON(evt); err != nil {
			if !errors.Is(err, websocket.ErrClosed) {
				logger.Error("failed to send audio", slog.Any("err", err))
			}
			return
		}
	}
}

// Write feeds mono PCM16 at the configured sample rate into the session.
func (t *Websocket) Write(p []byte) (int, error) {
	t.mu.Lock()
	sess := t.sess
	t.mu.Unlock()

	if sess == nil {
		return 0, ErrNotStarted
	}
	return sess.writer.Write(p)
}

// Stop closes the connection. The feed is closed once the inbound frames
// already received have been forwarded or dropped. Stop without a session
// returns nil.
func (t *Websocket) Stop(ctx context.Context) error {
	t.mu.Lock()
	sess := t.sess
	t.sess = nil
	t.mu.Unlock()

	if sess == nil {
		return nil
	}

	sess.stopping.Store(true)
	sess.uplink.CloseWriter()
	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	err := sess.ws.Close(closeCtx)
	cancel()
	sess.cancel()

	select {
	case <-sess.done:
	case <-ctx.Done():
	}
	return err
}

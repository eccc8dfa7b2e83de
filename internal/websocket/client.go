package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var ErrClosed = errors.New("websocket closed")

type HandlerFunc func(data []byte) error

type ClientConfig struct {
	URL         string
	DialTimeout time.Duration
	Headers     http.Header
	// OnText and OnBinary are called from a single goroutine in the order
	// the frames arrived.
	OnText   HandlerFunc
	OnBinary HandlerFunc
	Logger   *slog.Logger
}

type Client struct {
	conn      net.Conn
	out       chan wsutil.Message
	done      chan struct{}
	doneOnce  sync.Once
	processed chan struct{}
	logger    *slog.Logger

	mu      sync.Mutex
	readErr error
}

func (c *Client) setDone() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the connection has ended and every received frame has
// been handed to the handlers.
func (c *Client) Done() <-chan struct{} {
	return c.processed
}

// Err returns the read error that ended the connection, or nil if it was
// closed normally.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

func (c *Client) WriteText(data []byte) error {
	return c.Write(ws.OpText, data)
}

func (c *Client) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteText(data)
}

func (c *Client) SendClose(code ws.StatusCode, reason string) error {
	return c.Write(ws.OpClose, ws.NewCloseFrameBody(code, reason))
}

// Close sends a close frame and waits for the peer to end the connection or
// ctx to expire. The underlying connection is closed either way.
func (c *Client) Close(ctx context.Context) error {
	defer c.conn.Close()
	c.logger.Debug("closing websocket")
	if err := c.SendClose(ws.StatusNormalClosure, "closing"); err != nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close failed: %w", ctx.Err())
	}
}

func (c *Client) Write(opcode ws.OpCode, data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.out <- wsutil.Message{OpCode: opcode, Payload: data}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Connect dials config.URL. ctx bounds the lifetime of the connection; the
// handshake itself is bounded by DialTimeout.
func Connect(ctx context.Context, config ClientConfig) (*Client, error) {

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		slog.String("url", config.URL),
	)

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}

	hsCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	d := ws.Dialer{
		Timeout: dialTimeout,
		Header:  ws.HandshakeHeaderHTTP(config.Headers),
	}
	conn, buf, hs, err := d.Dial(hsCtx, config.URL)
	if err != nil {
		return nil, err
	}
	logger.Debug("handshake complete", slog.Any("handshake", hs))

	if buf != nil {
		// the server may have sent frames together with the handshake
		// response; they are read below before the raw conn.
		defer ws.PutReader(buf)
	}

	logger.Info("connected to websocket")

	var (
		input  = make(chan wsutil.Message, 1000)
		output = make(chan wsutil.Message, 1000)
	)

	client := &Client{
		conn:      conn,
		out:       output,
		done:      make(chan struct{}),
		processed: make(chan struct{}),
		logger:    logger,
	}

	onTextFunc := config.OnText
	if onTextFunc == nil {
		onTextFunc = func(data []byte) error {
			return nil
		}
	}
	onBinaryFunc := config.OnBinary
	if onBinaryFunc == nil {
		onBinaryFunc = func(data []byte) error {
			return nil
		}
	}

	var r io.Reader = conn
	if buf != nil && buf.Buffered() > 0 {
		pending := make([]byte, buf.Buffered())
		_, _ = io.ReadFull(buf, pending)
		r = io.MultiReader(bytes.NewReader(pending), conn)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{r, conn}

	// websocket -> input channel
	go func() {
		defer close(input)
		defer client.setDone()
		for {
			messages, err := wsutil.ReadServerMessage(rw, nil)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					select {
					case <-ctx.Done():
					default:
						logger.Error("ws read failed", slog.Any("err", err))
						client.setErr(err)
					}
				}
				return
			}
			for _, msg := range messages {
				select {
				case input <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// output channel -> websocket
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.done:
				return
			case msg := <-output:
				err := wsutil.WriteClientMessage(conn, msg.OpCode, msg.Payload)
				if err != nil {
					logger.Error("message write failed", slog.Any("err", err))
					return
				}
			}
		}
	}()

	// input channel processing
	go func() {
		defer close(client.processed)
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case msg, ok := <-input:
				if !ok {
					return
				}

				if msg.OpCode.IsControl() {
					logger.Debug("rcv: control", slog.Any("opcode", msg.OpCode))

					var closed wsutil.ClosedError
					if err := wsutil.HandleServerControlMessage(conn, msg); err != nil && !errors.As(err, &closed) {
						logger.Error("handling of control message failed", slog.Any("err", err))
					}

					if msg.OpCode == ws.OpClose {
						logger.Debug("rcv: close. closing client", slog.String("reason", string(msg.Payload)))
						client.setDone()
						_ = conn.Close()
					}

					continue
				}

				switch msg.OpCode {
				case ws.OpText:
					logger.Debug("rcv: text", slog.Int("len", len(msg.Payload)))
					if err := onTextFunc(msg.Payload); err != nil {
						logger.Error("text message handler failed", slog.Any("err", err))
					}

				case ws.OpBinary:
					logger.Debug("rcv: binary", slog.Int("len", len(msg.Payload)))
					if err := onBinaryFunc(msg.Payload); err != nil {
						logger.Error("binary message handler failed", slog.Any("err", err))
					}
				}
			}
		}
	}()

	return client, nil
}

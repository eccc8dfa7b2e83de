package rtscribe

import (
	"context"

	"github.com/codewandler/rtscribe/events"
)

// TokenProvider hands the transport the session token it should connect
// with.
type TokenProvider = func(ctx context.Context) (string, error)

// Transport owns the realtime connection. ctx passed to Start bounds the
// connection setup only, not the lifetime of the session.
//
// The returned feed delivers events in receipt order and is closed by the
// transport when the connection ends. Stop must not wait for the feed to be
// drained.
type Transport interface {
	Start(ctx context.Context, token TokenProvider) (<-chan events.Envelope, error)
	Stop(ctx context.Context) error
}

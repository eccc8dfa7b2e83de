package rtscribe

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("missing api key")
	ErrInvalidConfig     = errors.New("invalid session config")
	ErrAlreadyRecording  = errors.New("session already recording")
	ErrStartCanceled     = errors.New("session start canceled by stop")
)

// ErrStartInProgress is returned when a start races another start. It
// matches ErrAlreadyRecording with errors.Is.
var ErrStartInProgress = fmt.Errorf("session start in progress: %w", ErrAlreadyRecording)

// TokenExchangeError is returned when the session endpoint answers with a
// non-success status.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("failed to create session: %d %s", e.StatusCode, e.Body)
}

// MalformedResponseError is returned when the session endpoint succeeds but
// the body has no usable client secret.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed session response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed session response: %s", e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

type DuplicateItemError struct {
	ItemID string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("duplicate conversation item %q", e.ItemID)
}

type UnknownItemError struct {
	ItemID    string
	EventType string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("%s references unknown conversation item %q", e.EventType, e.ItemID)
}

// CompletedItemError reports a delta for an item that is already completed.
type CompletedItemError struct {
	ItemID    string
	EventType string
}

func (e *CompletedItemError) Error() string {
	return fmt.Sprintf("%s targets completed conversation item %q", e.EventType, e.ItemID)
}

// TransportFaultError wraps a fault reported by the transport during an
// active session.
type TransportFaultError struct {
	Err error
}

func (e *TransportFaultError) Error() string {
	return fmt.Sprintf("transport fault: %v", e.Err)
}

func (e *TransportFaultError) Unwrap() error { return e.Err }

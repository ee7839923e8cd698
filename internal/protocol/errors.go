package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ConnectionErrorKind classifies transport failures
type ConnectionErrorKind string

const (
	// KindRefused is a dial that failed before the handshake completed
	KindRefused ConnectionErrorKind = "refused"
	// KindTimeout is a dial that did not complete within the connect timeout
	KindTimeout ConnectionErrorKind = "timeout"
	// KindLost is an established connection that went away, or an explicit disconnect
	KindLost ConnectionErrorKind = "lost"
	// KindClosed is a dial abandoned because Disconnect was called meanwhile
	KindClosed ConnectionErrorKind = "closed"
	// KindExhausted means the reconnection state machine gave up
	KindExhausted ConnectionErrorKind = "exhausted"
)

// ConnectionError represents a transport-level failure
type ConnectionError struct {
	Kind     ConnectionErrorKind
	URL      string
	Attempts int
	Cause    error
}

// Sentinels for errors.Is; only Kind is compared
var (
	ErrConnectTimeout     = &ConnectionError{Kind: KindTimeout}
	ErrConnectionRefused  = &ConnectionError{Kind: KindRefused}
	ErrConnectionLost     = &ConnectionError{Kind: KindLost}
	ErrConnectionClosed   = &ConnectionError{Kind: KindClosed}
	ErrReconnectExhausted = &ConnectionError{Kind: KindExhausted}
)

// errDisconnected is the cause attached to rejections forced by Disconnect
var errDisconnected = errors.New("disconnected by caller")

// Error implements the error interface
func (e *ConnectionError) Error() string {
	msg := "connection " + string(e.Kind)
	switch e.Kind {
	case KindRefused:
		msg = "connection refused"
	case KindTimeout:
		msg = "connect timed out"
	case KindExhausted:
		msg = fmt.Sprintf("reconnect gave up after %d attempts", e.Attempts)
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap provides access to the original underlying error
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is matches any ConnectionError of the same kind
func (e *ConnectionError) Is(target error) bool {
	t, ok := target.(*ConnectionError)
	return ok && t.Kind == e.Kind
}

// IsRetryable reports whether a later connect might succeed
func (e *ConnectionError) IsRetryable() bool {
	switch e.Kind {
	case KindRefused, KindTimeout, KindLost:
		return true
	default:
		return false
	}
}

// TimeoutError is a call whose response did not arrive within its window
type TimeoutError struct {
	ID     uint64
	Method string
	Window time.Duration
}

// ErrRequestTimeout matches any TimeoutError through errors.Is
var ErrRequestTimeout = &TimeoutError{}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %d (%s) timed out after %s", e.ID, e.Method, e.Window)
}

// Is matches any TimeoutError
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// Timeout lets callers treat the error like a net.Error timeout
func (e *TimeoutError) Timeout() bool {
	return true
}

// ErrTooManyPending is returned when the pending table is full
var ErrTooManyPending = errors.New("too many pending requests")

package domain

import (
	"fmt"
	"time"
)

// ErrorKind classifies a core-level failure per the framework's error taxonomy:
// transport failures, malformed wire data, layer-imposed timeouts, pool
// exhaustion, authorization rejections, cooperative cancellation and caller
// misuse are distinct kinds so a connection engine can decide the right wire
// action without sniffing an error string.
type ErrorKind string

const (
	KindTransport     ErrorKind = "transport"
	KindProtocol      ErrorKind = "protocol"
	KindFramingLimit  ErrorKind = "framing_overflow"
	KindTimeout       ErrorKind = "timeout"
	KindPoolExhausted ErrorKind = "pool_exhausted"
	KindAuthorization ErrorKind = "authorization"
	KindCancelled     ErrorKind = "cancelled"
	KindUser          ErrorKind = "user"
)

// CoreError is the common shape for engine-level errors. Layers that don't need
// to recover a specific kind can branch on Kind without a type assertion per
// concrete error.
type CoreError struct {
	Err  error
	Op   string
	Kind ErrorKind
}

func (e *CoreError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CoreError) Unwrap() error { return e.Err }

func NewCoreError(kind ErrorKind, op string, err error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Err: err}
}

// TransportError wraps an I/O failure on the underlying stream. Never
// recoverable by the current connection.
type TransportError struct {
	Err     error
	Address string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure on %s: %v", e.Address, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError wraps malformed wire data. Connection-level protocol errors are
// fatal (HTTP/2 GOAWAY, HTTP/1 close); stream-scoped ones only RST that stream.
type ProtocolError struct {
	Err          error
	Detail       string
	StreamScoped bool
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error (%s): %v", e.Detail, e.Err)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// FramingLimitError reports a header list or body size overflow.
type FramingLimitError struct {
	Limit    int64
	Observed int64
	What     string
}

func (e *FramingLimitError) Error() string {
	return fmt.Sprintf("%s exceeded limit: %d > %d", e.What, e.Observed, e.Limit)
}

// PoolExhaustedError is returned when a pool acquisition could not be admitted
// or timed out waiting for a permit.
type PoolExhaustedError struct {
	Fingerprint string
	Waited      time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("pool exhausted for %q after waiting %v", e.Fingerprint, e.Waited)
}

// TimeoutError is surfaced by a layer-imposed timer, not by the protocol itself.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Op, e.Timeout)
}

func (e *TimeoutError) IsTimeout() bool { return true }

// AuthorizationError marks a SOCKS5/HTTP authorization rejection.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed: %s", e.Reason)
}

// UserError marks caller misuse: invalid URI, sending on a closed stream, etc.
type UserError struct {
	Detail string
}

func (e *UserError) Error() string {
	return fmt.Sprintf("invalid use: %s", e.Detail)
}

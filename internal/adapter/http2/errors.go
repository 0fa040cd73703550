package http2

import "fmt"

// ErrorCode is the 32-bit error code carried by RST_STREAM and GOAWAY, per
// RFC 7540 §7.
type ErrorCode uint32

const (
	ErrNoError            ErrorCode = 0x0
	ErrProtocolError      ErrorCode = 0x1
	ErrInternalError      ErrorCode = 0x2
	ErrFlowControlError   ErrorCode = 0x3
	ErrSettingsTimeout    ErrorCode = 0x4
	ErrStreamClosed       ErrorCode = 0x5
	ErrFrameSizeError     ErrorCode = 0x6
	ErrRefusedStream      ErrorCode = 0x7
	ErrCancel             ErrorCode = 0x8
	ErrCompressionError   ErrorCode = 0x9
	ErrConnectError       ErrorCode = 0xa
	ErrEnhanceYourCalm    ErrorCode = 0xb
	ErrInadequateSecurity ErrorCode = 0xc
	ErrHTTP11Required     ErrorCode = 0xd
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNoError:
		return "NO_ERROR"
	case ErrProtocolError:
		return "PROTOCOL_ERROR"
	case ErrInternalError:
		return "INTERNAL_ERROR"
	case ErrFlowControlError:
		return "FLOW_CONTROL_ERROR"
	case ErrSettingsTimeout:
		return "SETTINGS_TIMEOUT"
	case ErrStreamClosed:
		return "STREAM_CLOSED"
	case ErrFrameSizeError:
		return "FRAME_SIZE_ERROR"
	case ErrRefusedStream:
		return "REFUSED_STREAM"
	case ErrCancel:
		return "CANCEL"
	case ErrCompressionError:
		return "COMPRESSION_ERROR"
	case ErrConnectError:
		return "CONNECT_ERROR"
	case ErrEnhanceYourCalm:
		return "ENHANCE_YOUR_CALM"
	case ErrInadequateSecurity:
		return "INADEQUATE_SECURITY"
	case ErrHTTP11Required:
		return "HTTP_1_1_REQUIRED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint32(c))
	}
}

// ConnError is a connection-level protocol violation: the caller must emit
// GOAWAY with Code and close the connection.
type ConnError struct {
	Code   ErrorCode
	Reason string
}

func (e *ConnError) Error() string { return fmt.Sprintf("http2: connection error %s: %s", e.Code, e.Reason) }

// StreamError is a stream-level protocol violation: the caller must emit
// RST_STREAM for StreamID with Code and keep the connection open.
type StreamError struct {
	StreamID uint32
	Code     ErrorCode
	Reason   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("http2: stream %d error %s: %s", e.StreamID, e.Code, e.Reason)
}

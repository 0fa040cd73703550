package http2

import "sync"

// StreamState is one of the seven states a logical HTTP/2 stream moves
// through over its lifetime.
type StreamState uint8

const (
	StateIdle StreamState = iota
	StateReservedLocal
	StateReservedRemote
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReservedLocal:
		return "reserved(local)"
	case StateReservedRemote:
		return "reserved(remote)"
	case StateOpen:
		return "open"
	case StateHalfClosedLocal:
		return "half-closed(local)"
	case StateHalfClosedRemote:
		return "half-closed(remote)"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is one logical, bidirectional sequence of frames on a connection.
// Flow-control windows are signed because SETTINGS_INITIAL_WINDOW_SIZE
// changes can push them negative; sends must then block until replenished.
type Stream struct {
	mu sync.Mutex

	ID    uint32
	state StreamState

	sendWindow int64
	recvWindow int64

	// PseudoHeaderOrder preserves the order pseudo-headers were observed on
	// the wire for this stream's most recently decoded header block, used
	// for fingerprinting.
	PseudoHeaderOrder []string

	resetReason *ErrorCode
}

func newStream(id uint32, initialSendWindow, initialRecvWindow int32) *Stream {
	return &Stream{
		ID:         id,
		state:      StateIdle,
		sendWindow: int64(initialSendWindow),
		recvWindow: int64(initialRecvWindow),
	}
}

func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition validates and applies one state machine edge. Violations return
// a StreamError the caller turns into RST_STREAM.
func (s *Stream) transition(event streamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := streamTransitions[s.state][event]
	if !ok {
		return &StreamError{StreamID: s.ID, Code: ErrStreamClosed, Reason: "illegal transition " + event.String() + " from " + s.state.String()}
	}
	s.state = next
	return nil
}

// reset forces the stream to Closed regardless of its current state — valid
// from any state per RFC 7540 §5.1.
func (s *Stream) reset(code ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.resetReason = &code
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

type streamEvent uint8

const (
	eventSendHeaders streamEvent = iota
	eventRecvHeaders
	eventSendEndStream
	eventRecvEndStream
	eventSendPushPromise
	eventRecvPushPromise
)

func (e streamEvent) String() string {
	switch e {
	case eventSendHeaders:
		return "send-headers"
	case eventRecvHeaders:
		return "recv-headers"
	case eventSendEndStream:
		return "send-end-stream"
	case eventRecvEndStream:
		return "recv-end-stream"
	case eventSendPushPromise:
		return "send-push-promise"
	case eventRecvPushPromise:
		return "recv-push-promise"
	default:
		return "unknown-event"
	}
}

// streamTransitions encodes the exact state/event table: stream-to-stream
// HEADERS opens a stream (or resolves a reservation into a half-closed
// state), END_STREAM observed in one direction half-closes that direction,
// and a stream closes once both directions have ended. RST_STREAM is handled
// separately by reset, which is legal from any state.
var streamTransitions = map[StreamState]map[streamEvent]StreamState{
	StateIdle: {
		eventSendHeaders:     StateOpen,
		eventRecvHeaders:     StateOpen,
		eventSendPushPromise: StateReservedLocal,
		eventRecvPushPromise: StateReservedRemote,
	},
	StateReservedLocal: {
		eventSendHeaders: StateHalfClosedRemote,
	},
	StateReservedRemote: {
		eventRecvHeaders: StateHalfClosedLocal,
	},
	StateOpen: {
		eventSendEndStream: StateHalfClosedLocal,
		eventRecvEndStream: StateHalfClosedRemote,
	},
	StateHalfClosedLocal: {
		eventRecvEndStream: StateClosed,
	},
	StateHalfClosedRemote: {
		eventSendEndStream: StateClosed,
	},
}

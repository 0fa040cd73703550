// Package http2 implements the HTTP/2 connection engine: frame codec,
// per-stream state machine, flow control, HPACK header compression, and the
// connection-level control loop (SETTINGS, PING, GOAWAY, rapid-reset
// mitigation).
package http2

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameType is the 8-bit frame type field of the 9-byte frame header.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRSTStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRSTStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint8(t))
	}
}

// Flags, named per the frame types that define them. Multiple frame types
// reuse the same bit position with different meanings (e.g. 0x1 is END_STREAM
// on DATA/HEADERS but ACK on SETTINGS/PING).
const (
	FlagEndStream  uint8 = 0x1
	FlagAck        uint8 = 0x1
	FlagEndHeaders uint8 = 0x4
	FlagPadded     uint8 = 0x8
	FlagPriority   uint8 = 0x20
)

// DefaultMaxFrameSize is RFC 7540 §4.2's floor for SETTINGS_MAX_FRAME_SIZE.
const DefaultMaxFrameSize = 16384

// MaxFrameSizeUpperBound is RFC 7540 §4.2's ceiling (2^24 - 1).
const MaxFrameSizeUpperBound = 1<<24 - 1

// Preface is the connection preface every client must send before its first
// SETTINGS frame.
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// FrameHeader is the 9-byte header shared by every frame.
type FrameHeader struct {
	Length   uint32 // 24-bit payload length
	Type     FrameType
	Flags    uint8
	StreamID uint32 // 31-bit, high bit always zero
}

func (h FrameHeader) hasFlag(f uint8) bool { return h.Flags&f != 0 }

// Frame is a decoded frame: header plus raw, unparsed payload. Callers parse
// the payload according to Type via the Parse* helpers below.
type Frame struct {
	FrameHeader
	Payload []byte
}

// ReadFrame reads one frame from r, enforcing maxFrameSize on the payload
// length per SETTINGS_MAX_FRAME_SIZE.
func ReadFrame(r io.Reader, maxFrameSize uint32) (Frame, error) {
	var hdr [9]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}

	length := uint32(hdr[0])<<16 | uint32(hdr[1])<<8 | uint32(hdr[2])
	if length > maxFrameSize {
		return Frame{}, &ConnError{Code: ErrFrameSizeError, Reason: fmt.Sprintf("frame length %d exceeds max %d", length, maxFrameSize)}
	}

	fh := FrameHeader{
		Length:   length,
		Type:     FrameType(hdr[3]),
		Flags:    hdr[4],
		StreamID: binary.BigEndian.Uint32(hdr[5:9]) &^ (1 << 31),
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{FrameHeader: fh, Payload: payload}, nil
}

// WriteFrame writes a frame header followed by payload.
func WriteFrame(w io.Writer, t FrameType, flags uint8, streamID uint32, payload []byte) error {
	if len(payload) > MaxFrameSizeUpperBound {
		return fmt.Errorf("http2: frame payload %d exceeds protocol maximum", len(payload))
	}
	var hdr [9]byte
	n := uint32(len(payload))
	hdr[0] = byte(n >> 16)
	hdr[1] = byte(n >> 8)
	hdr[2] = byte(n)
	hdr[3] = byte(t)
	hdr[4] = flags
	binary.BigEndian.PutUint32(hdr[5:9], streamID&^(1<<31))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// stripPadding removes PADDED-flag padding from a frame payload, returning
// the unpadded data. The first byte (when PADDED is set) is the pad length;
// the data is followed by that many zero padding bytes.
func stripPadding(flags uint8, payload []byte) ([]byte, error) {
	if flags&FlagPadded == 0 {
		return payload, nil
	}
	if len(payload) < 1 {
		return nil, &ConnError{Code: ErrFrameSizeError, Reason: "padded frame missing pad length byte"}
	}
	padLen := int(payload[0])
	data := payload[1:]
	if padLen > len(data) {
		return nil, &ConnError{Code: ErrProtocolError, Reason: "pad length exceeds frame payload"}
	}
	return data[:len(data)-padLen], nil
}

// DataFrame is FrameData's parsed payload.
type DataFrame struct {
	EndStream bool
	Data      []byte
}

func ParseDataFrame(f Frame) (DataFrame, error) {
	data, err := stripPadding(f.Flags, f.Payload)
	if err != nil {
		return DataFrame{}, err
	}
	return DataFrame{EndStream: f.hasFlag(FlagEndStream), Data: data}, nil
}

// HeadersFrame is FrameHeaders' parsed payload. Priority fields are accepted
// and ignored (PRIORITY is deprecated by RFC 9113) beyond skipping their
// bytes in the block.
type HeadersFrame struct {
	EndStream    bool
	EndHeaders   bool
	HeaderBlock  []byte
	PriorityDep  uint32
	PriorityExcl bool
	Weight       uint8
	HasPriority  bool
}

func ParseHeadersFrame(f Frame) (HeadersFrame, error) {
	data, err := stripPadding(f.Flags, f.Payload)
	if err != nil {
		return HeadersFrame{}, err
	}

	hf := HeadersFrame{
		EndStream:  f.hasFlag(FlagEndStream),
		EndHeaders: f.hasFlag(FlagEndHeaders),
	}

	if f.hasFlag(FlagPriority) {
		if len(data) < 5 {
			return HeadersFrame{}, &ConnError{Code: ErrFrameSizeError, Reason: "HEADERS priority fields truncated"}
		}
		dep := binary.BigEndian.Uint32(data[0:4])
		hf.HasPriority = true
		hf.PriorityExcl = dep&(1<<31) != 0
		hf.PriorityDep = dep &^ (1 << 31)
		hf.Weight = data[4]
		data = data[5:]
	}

	hf.HeaderBlock = data
	return hf, nil
}

// PriorityFrame is FramePriority's payload: accepted, parsed, and ignored by
// the stream state machine per RFC 9113's deprecation of stream priority.
type PriorityFrame struct {
	Exclusive    bool
	Dependency   uint32
	Weight       uint8
}

func ParsePriorityFrame(f Frame) (PriorityFrame, error) {
	if len(f.Payload) != 5 {
		return PriorityFrame{}, &ConnError{Code: ErrFrameSizeError, Reason: "PRIORITY frame must be 5 bytes"}
	}
	dep := binary.BigEndian.Uint32(f.Payload[0:4])
	return PriorityFrame{
		Exclusive:  dep&(1<<31) != 0,
		Dependency: dep &^ (1 << 31),
		Weight:     f.Payload[4],
	}, nil
}

// RSTStreamFrame carries the error code that ended a stream abruptly.
type RSTStreamFrame struct {
	ErrorCode ErrorCode
}

func ParseRSTStreamFrame(f Frame) (RSTStreamFrame, error) {
	if len(f.Payload) != 4 {
		return RSTStreamFrame{}, &ConnError{Code: ErrFrameSizeError, Reason: "RST_STREAM frame must be 4 bytes"}
	}
	return RSTStreamFrame{ErrorCode: ErrorCode(binary.BigEndian.Uint32(f.Payload))}, nil
}

func EncodeRSTStreamFrame(code ErrorCode) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(code))
	return b[:]
}

// PingFrame carries 8 bytes of opaque data to be echoed back on ACK.
type PingFrame struct {
	Ack  bool
	Data [8]byte
}

func ParsePingFrame(f Frame) (PingFrame, error) {
	if len(f.Payload) != 8 {
		return PingFrame{}, &ConnError{Code: ErrFrameSizeError, Reason: "PING frame must be 8 bytes"}
	}
	var pf PingFrame
	pf.Ack = f.hasFlag(FlagAck)
	copy(pf.Data[:], f.Payload)
	return pf, nil
}

// GoAwayFrame signals orderly or error shutdown of the connection.
type GoAwayFrame struct {
	LastStreamID uint32
	ErrorCode    ErrorCode
	Debug        []byte
}

func ParseGoAwayFrame(f Frame) (GoAwayFrame, error) {
	if len(f.Payload) < 8 {
		return GoAwayFrame{}, &ConnError{Code: ErrFrameSizeError, Reason: "GOAWAY frame truncated"}
	}
	return GoAwayFrame{
		LastStreamID: binary.BigEndian.Uint32(f.Payload[0:4]) &^ (1 << 31),
		ErrorCode:    ErrorCode(binary.BigEndian.Uint32(f.Payload[4:8])),
		Debug:        f.Payload[8:],
	}, nil
}

func EncodeGoAwayFrame(lastStreamID uint32, code ErrorCode, debug []byte) []byte {
	b := make([]byte, 8+len(debug))
	binary.BigEndian.PutUint32(b[0:4], lastStreamID&^(1<<31))
	binary.BigEndian.PutUint32(b[4:8], uint32(code))
	copy(b[8:], debug)
	return b
}

// WindowUpdateFrame carries the increment a sender may add to its window.
type WindowUpdateFrame struct {
	Increment uint32 // 31-bit, 1..2^31-1
}

func ParseWindowUpdateFrame(f Frame) (WindowUpdateFrame, error) {
	if len(f.Payload) != 4 {
		return WindowUpdateFrame{}, &ConnError{Code: ErrFrameSizeError, Reason: "WINDOW_UPDATE frame must be 4 bytes"}
	}
	inc := binary.BigEndian.Uint32(f.Payload) &^ (1 << 31)
	if inc == 0 {
		return WindowUpdateFrame{}, &ConnError{Code: ErrProtocolError, Reason: "WINDOW_UPDATE increment must be non-zero"}
	}
	return WindowUpdateFrame{Increment: inc}, nil
}

func EncodeWindowUpdateFrame(increment uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], increment&^(1<<31))
	return b[:]
}

// ContinuationFrame carries the remainder of a header block begun by a
// HEADERS or PUSH_PROMISE frame without END_HEADERS.
type ContinuationFrame struct {
	EndHeaders  bool
	HeaderBlock []byte
}

func ParseContinuationFrame(f Frame) ContinuationFrame {
	return ContinuationFrame{EndHeaders: f.hasFlag(FlagEndHeaders), HeaderBlock: f.Payload}
}

// PushPromiseFrame is FramePushPromise's parsed payload.
type PushPromiseFrame struct {
	EndHeaders      bool
	PromisedStreamID uint32
	HeaderBlock     []byte
}

func ParsePushPromiseFrame(f Frame) (PushPromiseFrame, error) {
	data, err := stripPadding(f.Flags, f.Payload)
	if err != nil {
		return PushPromiseFrame{}, err
	}
	if len(data) < 4 {
		return PushPromiseFrame{}, &ConnError{Code: ErrFrameSizeError, Reason: "PUSH_PROMISE frame truncated"}
	}
	return PushPromiseFrame{
		EndHeaders:       f.hasFlag(FlagEndHeaders),
		PromisedStreamID: binary.BigEndian.Uint32(data[0:4]) &^ (1 << 31),
		HeaderBlock:      data[4:],
	}, nil
}

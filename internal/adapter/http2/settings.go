package http2

import "encoding/binary"

// SettingID identifies one SETTINGS key/value pair.
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// Settings is one peer's negotiated parameter set. Zero means "use the
// RFC 7540 default" for MaxConcurrentStreams/MaxHeaderListSize (unbounded).
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultSettings is what a peer assumes about the other side before any
// SETTINGS frame has been received.
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      4096,
		EnablePush:           true,
		MaxConcurrentStreams: 0, // unbounded until told otherwise
		InitialWindowSize:    65535,
		MaxFrameSize:         DefaultMaxFrameSize,
		MaxHeaderListSize:    0, // unbounded until told otherwise
	}
}

// ParseSettingsFrame decodes a SETTINGS payload into id/value pairs in wire
// order. It applies none of them; callers apply the pairs themselves and
// need the raw list because the INITIAL_WINDOW_SIZE delta retroactively
// shifts every open stream's send window.
func ParseSettingsFrame(payload []byte) ([]SettingPair, error) {
	if len(payload)%6 != 0 {
		return nil, &ConnError{Code: ErrFrameSizeError, Reason: "SETTINGS payload not a multiple of 6"}
	}
	pairs := make([]SettingPair, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		id := SettingID(binary.BigEndian.Uint16(payload[i : i+2]))
		val := binary.BigEndian.Uint32(payload[i+2 : i+6])
		pairs = append(pairs, SettingPair{ID: id, Value: val})
	}
	return pairs, nil
}

// SettingPair is one decoded SETTINGS key/value entry.
type SettingPair struct {
	ID    SettingID
	Value uint32
}

// Apply folds pair into s, returning an error for out-of-range values
// (RFC 7540 §6.5.2).
func (s *Settings) Apply(pair SettingPair) error {
	switch pair.ID {
	case SettingHeaderTableSize:
		s.HeaderTableSize = pair.Value
	case SettingEnablePush:
		if pair.Value > 1 {
			return &ConnError{Code: ErrProtocolError, Reason: "ENABLE_PUSH must be 0 or 1"}
		}
		s.EnablePush = pair.Value == 1
	case SettingMaxConcurrentStreams:
		s.MaxConcurrentStreams = pair.Value
	case SettingInitialWindowSize:
		if pair.Value > 1<<31-1 {
			return &ConnError{Code: ErrFlowControlError, Reason: "INITIAL_WINDOW_SIZE exceeds maximum"}
		}
		s.InitialWindowSize = pair.Value
	case SettingMaxFrameSize:
		if pair.Value < DefaultMaxFrameSize || pair.Value > MaxFrameSizeUpperBound {
			return &ConnError{Code: ErrProtocolError, Reason: "MAX_FRAME_SIZE out of range"}
		}
		s.MaxFrameSize = pair.Value
	case SettingMaxHeaderListSize:
		s.MaxHeaderListSize = pair.Value
	default:
		// unknown settings are ignored per RFC 7540 §6.5.2
	}
	return nil
}

// EncodeSettingsFrame serializes pairs in the order given — order is
// significant only insofar as later entries for the same ID win, which this
// encoding preserves by emitting them in caller-supplied order.
func EncodeSettingsFrame(pairs []SettingPair) []byte {
	buf := make([]byte, len(pairs)*6)
	for i, p := range pairs {
		binary.BigEndian.PutUint16(buf[i*6:i*6+2], uint16(p.ID))
		binary.BigEndian.PutUint32(buf[i*6+2:i*6+6], p.Value)
	}
	return buf
}

package forwarded

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

const v2Signature = "\r\n\r\n\x00\r\nQUIT\n"

// ParseErrorKind enumerates the ways a PROXY protocol header can fail to
// parse, so a caller can decide connection-level vs. per-field recovery
// without string-matching an error message.
type ParseErrorKind string

const (
	ErrIncomplete       ParseErrorKind = "incomplete"
	ErrPrefix           ParseErrorKind = "prefix"
	ErrVersionKind      ParseErrorKind = "version"
	ErrCommandKind      ParseErrorKind = "command"
	ErrAddressFamily    ParseErrorKind = "address_family"
	ErrProtocolKind     ParseErrorKind = "protocol"
	ErrPartial          ParseErrorKind = "partial"
	ErrInvalidAddresses ParseErrorKind = "invalid_addresses"
	ErrInvalidTLV       ParseErrorKind = "invalid_tlv"
	ErrLeftovers        ParseErrorKind = "leftovers"
)

// ParseError reports a failure to parse a PROXY protocol header.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("proxyproto: %s", e.Kind)
	}
	return fmt.Sprintf("proxyproto: %s: %s", e.Kind, e.Detail)
}

// Command is the v2 command nibble: whether the connection carries proxied
// address information or is a health check/local connection with none.
type Command byte

const (
	CommandLocal Command = 0x0
	CommandProxy Command = 0x1
)

// Family is the address family nibble. Values match the wire encoding
// directly (AF_UNSPEC=0, AF_INET=1, AF_INET6=2, AF_UNIX=3).
type Family byte

const (
	FamilyUnspec Family = iota
	FamilyInet
	FamilyInet6
	FamilyUnix
)

// Protocol is the transport protocol nibble. Values match the wire encoding
// directly (UNSPEC=0, STREAM=1, DGRAM=2).
type Protocol byte

const (
	ProtocolUnspec Protocol = iota
	ProtocolStream
	ProtocolDgram
)

// Endpoint is one side of a proxied connection: an IP+port for INET/INET6,
// or a socket path for UNIX.
type Endpoint struct {
	IP   net.IP
	Port uint16
	Path string
}

// TLV is a type-length-value entry following a v2 address block. Types this
// package doesn't interpret are preserved verbatim so a caller can forward
// them unchanged.
type TLV struct {
	Type  byte
	Value []byte
}

// Header is a parsed PROXY protocol header (v1 or v2).
type Header struct {
	Version  int
	Command  Command
	Family   Family
	Protocol Protocol
	Source   Endpoint
	Dest     Endpoint
	TLVs     []TLV
}

// ReadHeader reads one PROXY protocol header from r, detecting v1 (ASCII,
// "PROXY " prefix) vs. v2 (binary, 12-byte signature) automatically.
func ReadHeader(r *bufio.Reader) (*Header, error) {
	sig, err := r.Peek(len(v2Signature))
	if err == nil && string(sig) == v2Signature {
		return readV2(r)
	}

	prefix, err := r.Peek(6)
	if err != nil {
		return nil, &ParseError{Kind: ErrIncomplete, Detail: err.Error()}
	}
	if string(prefix) != "PROXY " {
		return nil, &ParseError{Kind: ErrPrefix, Detail: string(prefix)}
	}
	return readV1(r)
}

func readV1(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, &ParseError{Kind: ErrIncomplete, Detail: err.Error()}
	}
	line = strings.TrimRight(line, "\r\n")

	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "PROXY" {
		return nil, &ParseError{Kind: ErrPrefix, Detail: line}
	}

	switch fields[1] {
	case "UNKNOWN":
		return &Header{Version: 1, Command: CommandLocal, Family: FamilyUnspec, Protocol: ProtocolUnspec}, nil
	case "TCP4", "TCP6":
		if len(fields) != 6 {
			return nil, &ParseError{Kind: ErrPartial, Detail: line}
		}
		srcIP := net.ParseIP(fields[2])
		dstIP := net.ParseIP(fields[3])
		if srcIP == nil || dstIP == nil {
			return nil, &ParseError{Kind: ErrInvalidAddresses, Detail: line}
		}
		srcPort, err1 := strconv.ParseUint(fields[4], 10, 16)
		dstPort, err2 := strconv.ParseUint(fields[5], 10, 16)
		if err1 != nil || err2 != nil {
			return nil, &ParseError{Kind: ErrInvalidAddresses, Detail: line}
		}
		family := FamilyInet
		if fields[1] == "TCP6" {
			family = FamilyInet6
		}
		return &Header{
			Version: 1, Command: CommandProxy, Family: family, Protocol: ProtocolStream,
			Source: Endpoint{IP: srcIP, Port: uint16(srcPort)},
			Dest:   Endpoint{IP: dstIP, Port: uint16(dstPort)},
		}, nil
	default:
		return nil, &ParseError{Kind: ErrAddressFamily, Detail: fields[1]}
	}
}

func readV2(r *bufio.Reader) (*Header, error) {
	sig := make([]byte, len(v2Signature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, &ParseError{Kind: ErrIncomplete, Detail: err.Error()}
	}
	if string(sig) != v2Signature {
		return nil, &ParseError{Kind: ErrPrefix, Detail: "missing v2 signature"}
	}

	verCmd, err := r.ReadByte()
	if err != nil {
		return nil, &ParseError{Kind: ErrIncomplete, Detail: err.Error()}
	}
	version := verCmd >> 4
	command := verCmd & 0x0f
	if version != 2 {
		return nil, &ParseError{Kind: ErrVersionKind, Detail: fmt.Sprintf("0x%x", version)}
	}
	if command > byte(CommandProxy) {
		return nil, &ParseError{Kind: ErrCommandKind, Detail: fmt.Sprintf("0x%x", command)}
	}

	famProto, err := r.ReadByte()
	if err != nil {
		return nil, &ParseError{Kind: ErrIncomplete, Detail: err.Error()}
	}
	family, ok := familyFromWire(famProto >> 4)
	if !ok {
		return nil, &ParseError{Kind: ErrAddressFamily, Detail: fmt.Sprintf("0x%x", famProto>>4)}
	}
	protocol, ok := protocolFromWire(famProto & 0x0f)
	if !ok {
		return nil, &ParseError{Kind: ErrProtocolKind, Detail: fmt.Sprintf("0x%x", famProto&0x0f)}
	}

	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, &ParseError{Kind: ErrIncomplete, Detail: err.Error()}
	}
	length := binary.BigEndian.Uint16(lenBuf)

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &ParseError{Kind: ErrPartial, Detail: err.Error()}
	}

	return decodeV2Body(Command(command), family, protocol, body)
}

// DecodeV2 parses a complete v2 header (signature through the last TLV) from
// a fixed buffer rather than a stream, rejecting any trailing bytes. Useful
// for round-trip tests and for callers that already have the whole header
// in memory.
func DecodeV2(buf []byte) (*Header, error) {
	r := bufio.NewReader(bytes.NewReader(buf))
	h, err := readV2(r)
	if err != nil {
		return nil, err
	}
	if r.Buffered() > 0 || peekHasMore(r) {
		return nil, &ParseError{Kind: ErrLeftovers}
	}
	return h, nil
}

func peekHasMore(r *bufio.Reader) bool {
	_, err := r.Peek(1)
	return err == nil
}

func decodeV2Body(command Command, family Family, protocol Protocol, body []byte) (*Header, error) {
	h := &Header{Version: 2, Command: command, Family: family, Protocol: protocol}

	addrLen, err := addressBlockLength(family)
	if err != nil {
		return nil, err
	}
	if len(body) < addrLen {
		return nil, &ParseError{Kind: ErrInvalidAddresses, Detail: "address block truncated"}
	}

	switch family {
	case FamilyInet:
		h.Source.IP = append(net.IP(nil), body[0:4]...)
		h.Dest.IP = append(net.IP(nil), body[4:8]...)
		h.Source.Port = binary.BigEndian.Uint16(body[8:10])
		h.Dest.Port = binary.BigEndian.Uint16(body[10:12])
	case FamilyInet6:
		h.Source.IP = append(net.IP(nil), body[0:16]...)
		h.Dest.IP = append(net.IP(nil), body[16:32]...)
		h.Source.Port = binary.BigEndian.Uint16(body[32:34])
		h.Dest.Port = binary.BigEndian.Uint16(body[34:36])
	case FamilyUnix:
		h.Source.Path = trimNulPath(body[0:108])
		h.Dest.Path = trimNulPath(body[108:216])
	case FamilyUnspec:
	}

	tlvs, err := parseTLVs(body[addrLen:])
	if err != nil {
		return nil, err
	}
	h.TLVs = tlvs
	return h, nil
}

func addressBlockLength(f Family) (int, error) {
	switch f {
	case FamilyUnspec:
		return 0, nil
	case FamilyInet:
		return 12, nil
	case FamilyInet6:
		return 36, nil
	case FamilyUnix:
		return 216, nil
	default:
		return 0, &ParseError{Kind: ErrAddressFamily}
	}
}

func parseTLVs(b []byte) ([]TLV, error) {
	var tlvs []TLV
	for len(b) > 0 {
		if len(b) < 3 {
			return nil, &ParseError{Kind: ErrInvalidTLV, Detail: "truncated TLV header"}
		}
		t := b[0]
		l := int(binary.BigEndian.Uint16(b[1:3]))
		if len(b) < 3+l {
			return nil, &ParseError{Kind: ErrInvalidTLV, Detail: "truncated TLV value"}
		}
		tlvs = append(tlvs, TLV{Type: t, Value: append([]byte(nil), b[3:3+l]...)})
		b = b[3+l:]
	}
	return tlvs, nil
}

func trimNulPath(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func familyFromWire(n byte) (Family, bool) {
	if n > byte(FamilyUnix) {
		return 0, false
	}
	return Family(n), true
}

func protocolFromWire(n byte) (Protocol, bool) {
	if n > byte(ProtocolDgram) {
		return 0, false
	}
	return Protocol(n), true
}

// Encode serializes h back to wire format, v1 or v2 depending on h.Version
// (v2 is the default for the zero value).
func (h *Header) Encode() ([]byte, error) {
	if h.Version == 1 {
		return h.encodeV1(), nil
	}
	return h.encodeV2()
}

func (h *Header) encodeV1() []byte {
	if h.Family == FamilyUnspec {
		return []byte("PROXY UNKNOWN\r\n")
	}
	proto := "TCP4"
	if h.Family == FamilyInet6 {
		proto = "TCP6"
	}
	return []byte(fmt.Sprintf("PROXY %s %s %s %d %d\r\n", proto, h.Source.IP, h.Dest.IP, h.Source.Port, h.Dest.Port))
}

func (h *Header) encodeV2() ([]byte, error) {
	if byte(h.Family) > byte(FamilyUnix) {
		return nil, &ParseError{Kind: ErrAddressFamily}
	}
	if byte(h.Protocol) > byte(ProtocolDgram) {
		return nil, &ParseError{Kind: ErrProtocolKind}
	}

	addrLen, err := addressBlockLength(h.Family)
	if err != nil {
		return nil, err
	}
	addr := make([]byte, addrLen)
	switch h.Family {
	case FamilyInet:
		copy(addr[0:4], h.Source.IP.To4())
		copy(addr[4:8], h.Dest.IP.To4())
		binary.BigEndian.PutUint16(addr[8:10], h.Source.Port)
		binary.BigEndian.PutUint16(addr[10:12], h.Dest.Port)
	case FamilyInet6:
		copy(addr[0:16], h.Source.IP.To16())
		copy(addr[16:32], h.Dest.IP.To16())
		binary.BigEndian.PutUint16(addr[32:34], h.Source.Port)
		binary.BigEndian.PutUint16(addr[34:36], h.Dest.Port)
	case FamilyUnix:
		copy(addr[0:108], h.Source.Path)
		copy(addr[108:216], h.Dest.Path)
	case FamilyUnspec:
	}

	var tlvBytes []byte
	for _, t := range h.TLVs {
		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(t.Value)))
		tlvBytes = append(tlvBytes, t.Type)
		tlvBytes = append(tlvBytes, lenBuf...)
		tlvBytes = append(tlvBytes, t.Value...)
	}

	body := append(addr, tlvBytes...)
	out := make([]byte, 0, len(v2Signature)+4+len(body))
	out = append(out, []byte(v2Signature)...)
	out = append(out, (2<<4)|byte(h.Command))
	out = append(out, (byte(h.Family)<<4)|byte(h.Protocol))
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(body)))
	out = append(out, lenBuf...)
	out = append(out, body...)
	return out, nil
}

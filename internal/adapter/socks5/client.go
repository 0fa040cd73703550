package socks5

import (
	"context"
	"fmt"
	"io"

	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/core/domain"
)

// Credentials is a UserPass subnegotiation offer for the client side.
type Credentials struct {
	Username, Password string
}

// ClientConfig configures an outbound SOCKS5 negotiation.
type ClientConfig struct {
	Credentials *Credentials // nil means offer only AuthNoAuth
}

// Dial runs the client-side handshake over conn: greeting, optional
// subnegotiation, request, and reply — mirroring the server's state
// machine — returning the bound address the proxy reports.
func Dial(ctx context.Context, conn stream.Stream, cmd Command, dest Address, cfg ClientConfig) (Address, error) {
	offered := []AuthMethod{AuthNoAuth}
	if cfg.Credentials != nil {
		offered = append(offered, AuthUserPass)
	}

	greeting := append([]byte{protocolVersion, byte(len(offered))}, methodBytes(offered)...)
	if _, err := conn.Write(greeting); err != nil {
		return Address{}, &domain.TransportError{Err: err}
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return Address{}, &domain.TransportError{Err: err}
	}
	if resp[0] != protocolVersion {
		return Address{}, errUnsupportedVersion
	}
	method := AuthMethod(resp[1])
	if method == AuthNoneAcceptable {
		return Address{}, errNoAcceptableMethod
	}

	if method == AuthUserPass {
		if cfg.Credentials == nil {
			return Address{}, fmt.Errorf("socks5: server requires UserPass but no credentials configured")
		}
		if err := sendUserPass(conn, *cfg.Credentials); err != nil {
			return Address{}, err
		}
	}

	reqHdr := []byte{protocolVersion, byte(cmd), 0x00, byte(dest.Type)}
	reqHdr = append(reqHdr, encodeAddressBody(dest)...)
	if _, err := conn.Write(reqHdr); err != nil {
		return Address{}, &domain.TransportError{Err: err}
	}

	return readReply(conn)
}

func methodBytes(methods []AuthMethod) []byte {
	out := make([]byte, len(methods))
	for i, m := range methods {
		out[i] = byte(m)
	}
	return out
}

func sendUserPass(conn stream.Stream, creds Credentials) error {
	buf := []byte{0x01, byte(len(creds.Username))}
	buf = append(buf, creds.Username...)
	buf = append(buf, byte(len(creds.Password)))
	buf = append(buf, creds.Password...)
	if _, err := conn.Write(buf); err != nil {
		return &domain.TransportError{Err: err}
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return &domain.TransportError{Err: err}
	}
	if resp[1] != 0x00 {
		return errAuthFailed
	}
	return nil
}

func encodeAddressBody(addr Address) []byte {
	var buf []byte
	switch addr.Type {
	case AddrIPv4:
		buf = append(buf, addr.IP.To4()...)
	case AddrIPv6:
		buf = append(buf, addr.IP.To16()...)
	case AddrDomain:
		buf = append(buf, byte(len(addr.Domain)))
		buf = append(buf, addr.Domain...)
	}
	buf = append(buf, byte(addr.Port>>8), byte(addr.Port))
	return buf
}

func readReply(conn stream.Stream) (Address, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return Address{}, &domain.TransportError{Err: err}
	}
	if hdr[0] != protocolVersion {
		return Address{}, errUnsupportedVersion
	}
	code := ReplyCode(hdr[1])
	if code != ReplySucceeded {
		return Address{}, fmt.Errorf("socks5: request failed with reply code 0x%x", byte(code))
	}

	addr, err := readAddress(conn, AddrType(hdr[3]))
	if err != nil {
		return Address{}, err
	}
	return addr, nil
}

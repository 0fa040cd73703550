// Package socks5 implements a RFC 1928/1929 SOCKS5 proxy state machine for
// both server (accept) and client (connect) roles.
package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/core/domain"
)

const protocolVersion = 0x05

// AuthMethod is one of the method-negotiation octets from RFC 1928 §3.
type AuthMethod byte

const (
	AuthNoAuth         AuthMethod = 0x00
	AuthUserPass       AuthMethod = 0x02
	AuthNoneAcceptable AuthMethod = 0xff
)

// Command is the SOCKS5 request command.
type Command byte

const (
	CommandConnect      Command = 0x01
	CommandBind         Command = 0x02
	CommandUDPAssociate Command = 0x03
)

// AddrType is the address-type octet preceding DST.ADDR/BND.ADDR.
type AddrType byte

const (
	AddrIPv4   AddrType = 0x01
	AddrDomain AddrType = 0x03
	AddrIPv6   AddrType = 0x04
)

// ReplyCode is the REP field of a reply, per RFC 1928 §6.
type ReplyCode byte

const (
	ReplySucceeded              ReplyCode = 0x00
	ReplyGeneralFailure         ReplyCode = 0x01
	ReplyConnectionNotAllowed   ReplyCode = 0x02
	ReplyNetworkUnreachable     ReplyCode = 0x03
	ReplyHostUnreachable        ReplyCode = 0x04
	ReplyConnectionRefused      ReplyCode = 0x05
	ReplyTTLExpired             ReplyCode = 0x06
	ReplyCommandNotSupported    ReplyCode = 0x07
	ReplyAddressTypeNotSupported ReplyCode = 0x08
)

// Address is a SOCKS5 endpoint: either a resolved IP or an unresolved domain
// name plus port (ATYP AddrDomain defers resolution to the proxy).
type Address struct {
	Type   AddrType
	IP     net.IP
	Domain string
	Port   uint16
}

func (a Address) String() string {
	host := a.Domain
	if a.Type != AddrDomain {
		host = a.IP.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(int(a.Port)))
}

// Request is a decoded SOCKS5 request (the ReadRequest step).
type Request struct {
	Command Command
	Dest    Address
}

// Authorizer decides whether to accept a greeting's offered methods and, for
// UserPass, validates credentials. A built-in StaticCredentials authorizer
// covers the common case; callers may supply their own for dynamic stores.
type Authorizer interface {
	// SelectMethod picks one of offered, or AuthNoneAcceptable if none is
	// acceptable.
	SelectMethod(offered []AuthMethod) AuthMethod
	// Authenticate validates a UserPass subnegotiation. Only called when
	// SelectMethod chose AuthUserPass.
	Authenticate(ctx context.Context, user, pass string) bool
}

// NoAuth accepts any connection without authentication.
type NoAuth struct{}

func (NoAuth) SelectMethod(offered []AuthMethod) AuthMethod {
	for _, m := range offered {
		if m == AuthNoAuth {
			return AuthNoAuth
		}
	}
	return AuthNoneAcceptable
}

func (NoAuth) Authenticate(context.Context, string, string) bool { return true }

// StaticCredentials is a built-in basic user/password authorizer backed by a
// fixed in-memory credential store.
type StaticCredentials map[string]string

func (StaticCredentials) SelectMethod(offered []AuthMethod) AuthMethod {
	for _, m := range offered {
		if m == AuthUserPass {
			return AuthUserPass
		}
	}
	return AuthNoneAcceptable
}

func (s StaticCredentials) Authenticate(_ context.Context, user, pass string) bool {
	want, ok := s[user]
	return ok && want == pass
}

var (
	errUnsupportedVersion = errors.New("socks5: unsupported protocol version")
	errNoAcceptableMethod = errors.New("socks5: no acceptable authentication method")
	errAuthFailed         = errors.New("socks5: authentication failed")
)

// Executor performs the action a Request asks for (dialing out for CONNECT,
// listening for BIND, allocating a UDP relay for UDP ASSOCIATE) and returns
// the bound address to report back as BND.ADDR/BND.PORT plus the stream to
// splice, if any.
type Executor interface {
	Execute(ctx context.Context, req Request) (bound Address, relay stream.Stream, err error)
}

// ServerConfig configures one accepted connection's handshake.
type ServerConfig struct {
	Authorizer Authorizer
	Executor   Executor
}

// Serve runs the server-side state machine to completion: greeting, optional
// subnegotiation, request, execute, reply, and — for CONNECT — a full-duplex
// splice between conn and the executor's relay stream.
func Serve(ctx context.Context, conn stream.Stream, cfg ServerConfig) error {
	if cfg.Authorizer == nil {
		cfg.Authorizer = NoAuth{}
	}

	method, err := readGreeting(conn, cfg.Authorizer)
	if err != nil {
		return err
	}
	if _, err := conn.Write([]byte{protocolVersion, byte(method)}); err != nil {
		return &domain.TransportError{Err: err}
	}
	if method == AuthNoneAcceptable {
		return errNoAcceptableMethod
	}

	if method == AuthUserPass {
		ok, err := negotiateUserPass(ctx, conn, cfg.Authorizer)
		if err != nil {
			return err
		}
		if !ok {
			return errAuthFailed
		}
	}

	req, err := readRequest(conn)
	if err != nil {
		return err
	}

	bound, relay, execErr := cfg.Executor.Execute(ctx, req)
	if execErr != nil {
		_ = writeReply(conn, replyCodeFor(execErr), bound)
		return execErr
	}
	if err := writeReply(conn, ReplySucceeded, bound); err != nil {
		return err
	}

	if req.Command == CommandConnect && relay != nil {
		return splice(conn, relay)
	}
	return nil
}

func replyCodeFor(err error) ReplyCode {
	var coreErr *domain.CoreError
	if errors.As(err, &coreErr) {
		switch coreErr.Kind {
		case domain.KindTimeout:
			return ReplyTTLExpired
		case domain.KindAuthorization:
			return ReplyConnectionNotAllowed
		case domain.KindTransport:
			return ReplyHostUnreachable
		}
	}
	return ReplyGeneralFailure
}

func readGreeting(conn stream.Stream, auth Authorizer) (AuthMethod, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return 0, &domain.TransportError{Err: err}
	}
	if hdr[0] != protocolVersion {
		return 0, errUnsupportedVersion
	}
	methods := make([]byte, hdr[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return 0, &domain.TransportError{Err: err}
	}

	offered := make([]AuthMethod, len(methods))
	for i, m := range methods {
		offered[i] = AuthMethod(m)
	}
	return auth.SelectMethod(offered), nil
}

// negotiateUserPass implements RFC 1929's subnegotiation: ver=1, ulen, uname,
// plen, passwd; reply is ver=1, status (0x00 success, else failure).
func negotiateUserPass(ctx context.Context, conn stream.Stream, auth Authorizer) (bool, error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return false, &domain.TransportError{Err: err}
	}
	uname := make([]byte, hdr[1])
	if _, err := io.ReadFull(conn, uname); err != nil {
		return false, &domain.TransportError{Err: err}
	}

	plenBuf := make([]byte, 1)
	if _, err := io.ReadFull(conn, plenBuf); err != nil {
		return false, &domain.TransportError{Err: err}
	}
	pass := make([]byte, plenBuf[0])
	if _, err := io.ReadFull(conn, pass); err != nil {
		return false, &domain.TransportError{Err: err}
	}

	ok := auth.Authenticate(ctx, string(uname), string(pass))
	status := byte(0x01)
	if ok {
		status = 0x00
	}
	if _, err := conn.Write([]byte{0x01, status}); err != nil {
		return false, &domain.TransportError{Err: err}
	}
	return ok, nil
}

func readRequest(conn stream.Stream) (Request, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return Request{}, &domain.TransportError{Err: err}
	}
	if hdr[0] != protocolVersion {
		return Request{}, errUnsupportedVersion
	}

	addr, err := readAddress(conn, AddrType(hdr[3]))
	if err != nil {
		return Request{}, err
	}
	return Request{Command: Command(hdr[1]), Dest: addr}, nil
}

func readAddress(conn stream.Stream, atyp AddrType) (Address, error) {
	addr := Address{Type: atyp}
	switch atyp {
	case AddrIPv4:
		buf := make([]byte, 4)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return Address{}, &domain.TransportError{Err: err}
		}
		addr.IP = net.IP(buf)
	case AddrIPv6:
		buf := make([]byte, 16)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return Address{}, &domain.TransportError{Err: err}
		}
		addr.IP = net.IP(buf)
	case AddrDomain:
		lenBuf := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			return Address{}, &domain.TransportError{Err: err}
		}
		buf := make([]byte, lenBuf[0])
		if _, err := io.ReadFull(conn, buf); err != nil {
			return Address{}, &domain.TransportError{Err: err}
		}
		addr.Domain = string(buf)
	default:
		return Address{}, &domain.ProtocolError{Detail: fmt.Sprintf("unsupported address type 0x%x", atyp)}
	}

	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBuf); err != nil {
		return Address{}, &domain.TransportError{Err: err}
	}
	addr.Port = uint16(portBuf[0])<<8 | uint16(portBuf[1])
	return addr, nil
}

func writeReply(conn stream.Stream, code ReplyCode, bound Address) error {
	buf := encodeReply(code, bound)
	_, err := conn.Write(buf)
	if err != nil {
		return &domain.TransportError{Err: err}
	}
	return nil
}

func encodeReply(code ReplyCode, bound Address) []byte {
	buf := []byte{protocolVersion, byte(code), 0x00, byte(bound.Type)}
	switch bound.Type {
	case AddrIPv4:
		ip := bound.IP.To4()
		if ip == nil {
			ip = make(net.IP, 4)
		}
		buf = append(buf, ip...)
	case AddrIPv6:
		ip := bound.IP.To16()
		if ip == nil {
			ip = make(net.IP, 16)
		}
		buf = append(buf, ip...)
	case AddrDomain:
		buf = append(buf, byte(len(bound.Domain)))
		buf = append(buf, bound.Domain...)
	default:
		buf = append(buf, make([]byte, 4)...)
	}
	buf = append(buf, byte(bound.Port>>8), byte(bound.Port))
	return buf
}

// splice runs a full-duplex copy between a and b until either side closes
// or errors, used for CONNECT's data phase.
func splice(a, b stream.Stream) error {
	errCh := make(chan error, 2)
	go func() {
		_, err := io.Copy(a, b)
		errCh <- err
	}()
	go func() {
		_, err := io.Copy(b, a)
		errCh <- err
	}()
	err := <-errCh
	_ = a.Close()
	_ = b.Close()
	<-errCh
	return err
}

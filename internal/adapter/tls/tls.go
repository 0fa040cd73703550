// Package tls wraps a crypto/tls handshake as a Layer over the stream
// abstraction: TLS is integration, not a built-in the engines hard-code.
package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"

	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/core/domain"
	"github.com/ramaframework/rama/internal/core/extensions"
)

// NegotiatedParameters is inserted into the wrapped stream's Extensions on a
// successful handshake, carrying what downstream layers (HTTP engine
// selection, fingerprinting) need to know about the TLS session.
type NegotiatedParameters struct {
	Version    uint16
	ALPN       string // empty if the peer didn't negotiate one
	PeerCerts  []*x509.Certificate
	ServerName string
}

// ClientHelloRecord is populated when RecordClientHello is enabled, carrying
// the raw negotiation offer for fingerprinting before the handshake
// overwrites it with the negotiated result.
type ClientHelloRecord struct {
	ServerName        string
	SupportedProtos   []string
	CipherSuites      []uint16
	SupportedVersions []uint16
}

// wrapped is the Stream produced by a successful handshake: byte I/O now
// flows through the TLS record layer, but Extensions/addresses still
// delegate to the underlying stream.
type wrapped struct {
	stream.Wrapper
	conn *tls.Conn
}

func (w *wrapped) Read(p []byte) (int, error)  { return w.conn.Read(p) }
func (w *wrapped) Write(p []byte) (int, error) { return w.conn.Write(p) }
func (w *wrapped) Close() error                { return w.conn.Close() }

// AcceptorConfig configures the server-side handshake.
type AcceptorConfig struct {
	TLSConfig         *tls.Config
	RecordClientHello bool
}

// Accept runs the server-side TLS handshake over inner, returning a wrapped
// Stream whose Extensions carry NegotiatedParameters on success.
func Accept(ctx context.Context, inner stream.Stream, cfg AcceptorConfig) (stream.Stream, error) {
	var recorded *ClientHelloRecord
	tlsCfg := cfg.TLSConfig
	if cfg.RecordClientHello {
		tlsCfg = tlsCfg.Clone()
		tlsCfg.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			recorded = &ClientHelloRecord{
				ServerName:        hello.ServerName,
				SupportedProtos:   hello.SupportedProtos,
				CipherSuites:      hello.CipherSuites,
				SupportedVersions: hello.SupportedVersions,
			}
			return nil, nil
		}
	}

	conn := tls.Server(netConnAdapter{inner}, tlsCfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, &domain.TransportError{Err: err, Address: inner.RemoteAddr().String()}
	}

	out := &wrapped{Wrapper: stream.Wrapper{Inner: inner}, conn: conn}
	state := conn.ConnectionState()
	extensions.Insert(inner.Extensions(), NegotiatedParameters{
		Version:    state.Version,
		ALPN:       state.NegotiatedProtocol,
		PeerCerts:  state.PeerCertificates,
		ServerName: state.ServerName,
	})
	if recorded != nil {
		extensions.Insert(inner.Extensions(), *recorded)
	}
	return out, nil
}

// ConnectorConfig configures the client-side handshake.
type ConnectorConfig struct {
	TLSConfig  *tls.Config
	ServerName string
}

// Connect runs the client-side TLS handshake over inner against cfg's
// server name, returning a wrapped Stream whose Extensions carry
// NegotiatedParameters.
func Connect(ctx context.Context, inner stream.Stream, cfg ConnectorConfig) (stream.Stream, error) {
	tlsCfg := cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	}
	if cfg.ServerName != "" {
		tlsCfg = tlsCfg.Clone()
		tlsCfg.ServerName = cfg.ServerName
	}

	conn := tls.Client(netConnAdapter{inner}, tlsCfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, &domain.TransportError{Err: err, Address: inner.RemoteAddr().String()}
	}

	out := &wrapped{Wrapper: stream.Wrapper{Inner: inner}, conn: conn}
	state := conn.ConnectionState()
	extensions.Insert(inner.Extensions(), NegotiatedParameters{
		Version:    state.Version,
		ALPN:       state.NegotiatedProtocol,
		PeerCerts:  state.PeerCertificates,
		ServerName: state.ServerName,
	})
	return out, nil
}

// SelectALPN maps a negotiated ALPN value to the HTTP engine that should
// serve the stream; an empty or unrecognized value falls back to HTTP/1.1,
// matching a peer that didn't offer ALPN at all.
func SelectALPN(alpn string) string {
	switch alpn {
	case "h2":
		return "h2"
	default:
		return "http/1.1"
	}
}

// netConnAdapter satisfies net.Conn over a stream.Stream so crypto/tls can
// run its handshake without knowing about the Stream abstraction. Stream
// itself carries no deadline concept, so deadline calls are no-ops; a
// caller needing handshake timeouts should bound ctx instead.
type netConnAdapter struct {
	stream.Stream
}

func (netConnAdapter) SetDeadline(time.Time) error      { return nil }
func (netConnAdapter) SetReadDeadline(time.Time) error  { return nil }
func (netConnAdapter) SetWriteDeadline(time.Time) error { return nil }

var _ net.Conn = netConnAdapter{}

package app

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/ramaframework/rama/internal/adapter/forwarded"
	"github.com/ramaframework/rama/internal/adapter/http1"
	"github.com/ramaframework/rama/internal/adapter/http2"
	"github.com/ramaframework/rama/internal/adapter/shutdown"
	"github.com/ramaframework/rama/internal/adapter/stream"
	rtls "github.com/ramaframework/rama/internal/adapter/tls"
	"github.com/ramaframework/rama/internal/config"
	"github.com/ramaframework/rama/internal/core/extensions"
	"github.com/ramaframework/rama/internal/core/ports"
	"github.com/ramaframework/rama/internal/util"
)

// peekedConn replays the bytes a bufio.Reader already pulled off the wire
// (while peeking a PROXY protocol header) before falling back to raw reads,
// so the TLS/HTTP layers stacked above see a contiguous, undisturbed stream.
type peekedConn struct {
	net.Conn
	r *bufio.Reader
}

func (p *peekedConn) Read(b []byte) (int, error) { return p.r.Read(b) }

func (a *Application) runListener(guard *shutdown.Guard, ln net.Listener, lcfg config.ListenerConfig) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-guard.Context().Done():
				return
			default:
			}
			a.logger.Error("accept error", "listener", lcfg.Name, "error", err)
			continue
		}
		guard.Go(func(ctx context.Context) {
			a.handleConn(ctx, raw, lcfg)
		})
	}
}

func (a *Application) handleConn(ctx context.Context, raw net.Conn, lcfg config.ListenerConfig) {
	protocol := "http1"
	remote := raw.RemoteAddr().String()
	a.events.Publish(ports.ConnectionEvent{At: time.Now(), Listener: lcfg.Name, Protocol: protocol, RemoteAddr: remote, Stage: "accepted"})
	defer func() {
		raw.Close()
		a.events.Publish(ports.ConnectionEvent{At: time.Now(), Listener: lcfg.Name, Protocol: protocol, RemoteAddr: remote, Stage: "closed"})
	}()

	var s stream.Stream = stream.AcceptTCP(raw)

	if lcfg.ProxyProtocol {
		if !a.peerTrustedForProxyProtocol(raw.RemoteAddr()) {
			a.logger.Error("proxy protocol rejected: untrusted source", "listener", lcfg.Name, "remote", remote)
			return
		}
		br := bufio.NewReader(raw)
		hdr, err := forwarded.ReadHeader(br)
		if err != nil {
			a.logger.Error("proxy protocol error", "listener", lcfg.Name, "error", err)
			return
		}
		s = stream.AcceptTCP(&peekedConn{Conn: raw, r: br})
		extensions.Insert(s.Extensions(), *hdr)
	}

	if lcfg.TLS {
		wrapped, err := rtls.Accept(ctx, s, rtls.AcceptorConfig{TLSConfig: a.tlsServerConfig})
		if err != nil {
			a.logger.Error("tls handshake error", "listener", lcfg.Name, "error", err)
			return
		}
		s = wrapped

		if params, ok := extensions.Get[rtls.NegotiatedParameters](s.Extensions()); ok && params.ALPN == "h2" {
			protocol = "http2"
			a.serveHTTP2(ctx, s, lcfg)
			return
		}
	}

	a.serveHTTP1(ctx, s, lcfg)
}

// peerTrustedForProxyProtocol reports whether addr may send a PROXY protocol
// header on a listener that accepts one. An empty trustedProxyCIDRs trusts
// every peer, so configs that never set proxy_protocol.trusted_proxies keep
// behaving the way they did before the allowlist existed.
func (a *Application) peerTrustedForProxyProtocol(addr net.Addr) bool {
	if len(a.trustedProxyCIDRs) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return util.IsIPInTrustedCIDRs(ip, a.trustedProxyCIDRs)
}

func (a *Application) serveHTTP1(ctx context.Context, s stream.Stream, lcfg config.ListenerConfig) {
	cfg := http1.ServerConfig{MaxHeaderBytes: a.cfg.HTTP1.MaxHeaderBytes, Clock: a.dateClock}
	err := http1.Serve(ctx, s, asHTTP1Handler(a.router), cfg)

	var upgrade *http1.UpgradeRequested
	if errors.As(err, &upgrade) {
		// No protocol engine is registered to consume a surrendered stream
		// yet (no WebSocket/h2c engine wired in this listener), so the most
		// honest thing to do with it is close it rather than silently drop
		// it, leaving the 101 response as the last thing the peer saw.
		a.logger.Debug("protocol upgrade requested with no engine registered", "listener", lcfg.Name, "protocol", upgrade.Proto)
		_ = upgrade.Stream.Close()
		return
	}
	if err != nil {
		a.logger.Debug("http/1 connection ended", "listener", lcfg.Name, "error", err)
	}
}

func (a *Application) serveHTTP2(ctx context.Context, s stream.Stream, lcfg config.ListenerConfig) {
	cfg := http2.Config{
		Role:                 http2.PeerServer,
		InitialWindowSize:    uint32(a.cfg.HTTP2.InitialWindowSize),
		MaxConcurrentStreams: a.cfg.HTTP2.MaxConcurrentStreams,
		MaxFrameSize:         a.cfg.HTTP2.MaxFrameSize,
	}
	if err := http2.Serve(ctx, s, asHTTP2Handler(a.router), cfg); err != nil {
		a.logger.Debug("http/2 connection ended", "listener", lcfg.Name, "error", err)
	}
}

func (a *Application) runSOCKS5(guard *shutdown.Guard, ln net.Listener, scfg config.SOCKS5Config) {
	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-guard.Context().Done():
				return
			default:
			}
			a.logger.Error("socks5 accept error", "error", err)
			continue
		}
		guard.Go(func(ctx context.Context) {
			remote := raw.RemoteAddr().String()
			a.events.Publish(ports.ConnectionEvent{At: time.Now(), Listener: "socks5", Protocol: "socks5", RemoteAddr: remote, Stage: "accepted"})
			defer func() {
				raw.Close()
				a.events.Publish(ports.ConnectionEvent{At: time.Now(), Listener: "socks5", Protocol: "socks5", RemoteAddr: remote, Stage: "closed"})
			}()
			if err := a.socks5Serve(ctx, stream.AcceptTCP(raw), scfg); err != nil {
				a.logger.Debug("socks5 connection ended", "error", err)
			}
		})
	}
}

func buildTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tlsMinVersion(cfg.MinVersion),
	}
	return tlsCfg, nil
}

func tlsMinVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func logListenerStart(logger *slog.Logger, lcfg config.ListenerConfig) {
	logger.Info("listener started", "name", lcfg.Name, "address", lcfg.Address, "tls", lcfg.TLS, "proxy_protocol", lcfg.ProxyProtocol)
}

package app

import (
	"context"
	"fmt"
	"net"

	"github.com/ramaframework/rama/internal/adapter/resolver"
	"github.com/ramaframework/rama/internal/adapter/socks5"
	"github.com/ramaframework/rama/internal/adapter/stream"
)

// directExecutor implements socks5.Executor for the CONNECT command by
// resolving a domain destination (if given one) and dialing out directly.
// BIND and UDP ASSOCIATE are rejected — this framework's SOCKS5 endpoint
// only forwards outbound TCP. CONNECT relays are single-use per tunnel, so
// unlike the HTTP engines' outbound connections they have no reuse value and
// are dialed fresh rather than drawn from the pool (C5).
type directExecutor struct {
	resolver    resolver.Resolver
	dialTimeout func(ctx context.Context, addr string) (stream.Stream, error)
}

func newDirectExecutor(res resolver.Resolver) *directExecutor {
	return &directExecutor{resolver: res, dialTimeout: stream.DialTCP}
}

func (e *directExecutor) Execute(ctx context.Context, req socks5.Request) (socks5.Address, stream.Stream, error) {
	if req.Command != socks5.CommandConnect {
		return socks5.Address{}, nil, fmt.Errorf("socks5: command %d not supported", req.Command)
	}

	host := req.Dest.Domain
	if host == "" {
		host = req.Dest.IP.String()
	} else {
		addrs, err := e.resolver.Resolve(ctx, host, resolver.A)
		if err != nil || len(addrs) == 0 {
			return socks5.Address{}, nil, fmt.Errorf("socks5: resolve %s: %w", host, err)
		}
		host = addrs[0]
	}

	addr := net.JoinHostPort(host, fmt.Sprint(req.Dest.Port))
	relay, err := e.dialTimeout(ctx, addr)
	if err != nil {
		return socks5.Address{}, nil, err
	}

	bound := socks5.Address{Type: socks5.AddrIPv4, IP: net.IPv4zero, Port: req.Dest.Port}
	if tcpAddr, ok := relay.LocalAddr().(*net.TCPAddr); ok {
		bound = socks5.Address{Type: socks5.AddrIPv4, IP: tcpAddr.IP, Port: uint16(tcpAddr.Port)}
	}
	return bound, relay, nil
}

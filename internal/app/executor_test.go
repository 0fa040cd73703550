package app

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/ramaframework/rama/internal/adapter/resolver"
	"github.com/ramaframework/rama/internal/adapter/socks5"
	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/core/extensions"
)

type fakeStream struct {
	local net.Addr
	ext   *extensions.Extensions
}

func (fakeStream) Read([]byte) (int, error)              { return 0, io.EOF }
func (fakeStream) Write(p []byte) (int, error)           { return len(p), nil }
func (fakeStream) Close() error                          { return nil }
func (s fakeStream) Extensions() *extensions.Extensions  { return s.ext }
func (s fakeStream) LocalAddr() net.Addr                 { return s.local }
func (fakeStream) RemoteAddr() net.Addr                  { return nil }

func newFakeStream(addr string) stream.Stream {
	tcpAddr, _ := net.ResolveTCPAddr("tcp", addr)
	return fakeStream{local: tcpAddr, ext: extensions.New()}
}

func TestDirectExecutor_ConnectDialsResolvedAddress(t *testing.T) {
	var dialedAddr string
	ex := &directExecutor{
		resolver: resolver.Func(func(ctx context.Context, host string, kind resolver.RecordKind) ([]string, error) {
			if host != "example.test" {
				t.Fatalf("resolve called with host %q, want example.test", host)
			}
			return []string{"203.0.113.5"}, nil
		}),
		dialTimeout: func(ctx context.Context, addr string) (stream.Stream, error) {
			dialedAddr = addr
			return newFakeStream("203.0.113.5:9000"), nil
		},
	}

	req := socks5.Request{
		Command: socks5.CommandConnect,
		Dest:    socks5.Address{Type: socks5.AddrDomain, Domain: "example.test", Port: 443},
	}

	bound, relay, err := ex.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if relay == nil {
		t.Fatal("Execute returned a nil relay stream")
	}
	if dialedAddr != "203.0.113.5:443" {
		t.Fatalf("dialed %q, want 203.0.113.5:443", dialedAddr)
	}
	if bound.Port != 9000 {
		t.Fatalf("bound.Port = %d, want 9000", bound.Port)
	}
}

func TestDirectExecutor_ConnectDialsLiteralIP(t *testing.T) {
	var dialedAddr string
	ex := &directExecutor{
		resolver: resolver.Func(func(ctx context.Context, host string, kind resolver.RecordKind) ([]string, error) {
			t.Fatal("resolver should not be consulted for a literal IP destination")
			return nil, nil
		}),
		dialTimeout: func(ctx context.Context, addr string) (stream.Stream, error) {
			dialedAddr = addr
			return newFakeStream("198.51.100.2:5000"), nil
		},
	}

	req := socks5.Request{
		Command: socks5.CommandConnect,
		Dest:    socks5.Address{Type: socks5.AddrIPv4, IP: net.ParseIP("198.51.100.2"), Port: 80},
	}

	if _, _, err := ex.Execute(context.Background(), req); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if dialedAddr != "198.51.100.2:80" {
		t.Fatalf("dialed %q, want 198.51.100.2:80", dialedAddr)
	}
}

func TestDirectExecutor_RejectsNonConnect(t *testing.T) {
	ex := newDirectExecutor(resolver.System())

	req := socks5.Request{Command: socks5.Command(0x02)} // BIND
	if _, _, err := ex.Execute(context.Background(), req); err == nil {
		t.Fatal("expected an error for a non-CONNECT command")
	}
}

func TestDirectExecutor_ResolveFailurePropagates(t *testing.T) {
	ex := &directExecutor{
		resolver: resolver.Func(func(ctx context.Context, host string, kind resolver.RecordKind) ([]string, error) {
			return nil, io.ErrUnexpectedEOF
		}),
		dialTimeout: func(ctx context.Context, addr string) (stream.Stream, error) {
			t.Fatal("dial should not be attempted when resolution fails")
			return nil, nil
		},
	}

	req := socks5.Request{
		Command: socks5.CommandConnect,
		Dest:    socks5.Address{Type: socks5.AddrDomain, Domain: "unreachable.test", Port: 443},
	}

	if _, _, err := ex.Execute(context.Background(), req); err == nil {
		t.Fatal("expected resolution failure to propagate")
	}
}

package stream_test

import (
	"net"
	"testing"

	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/core/extensions"
)

// decoratingStream is a minimal wrap-another-stream example (standing in for
// a TLS-over-TCP layer) used to exercise Wrapper's delegation.
type decoratingStream struct {
	stream.Wrapper
}

func (d decoratingStream) Read(p []byte) (int, error)  { return d.Inner.Read(p) }
func (d decoratingStream) Write(p []byte) (int, error) { return d.Inner.Write(p) }

func TestWrapperDelegatesExtensions(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()

	inner := stream.NewConn(c1)
	extensions.Insert(inner.Extensions(), struct{ Tag string }{Tag: "inner"})

	outer := decoratingStream{stream.Wrapper{Inner: inner}}

	if outer.Extensions() != inner.Extensions() {
		t.Fatalf("expected outer.Extensions() to be the same container as inner's")
	}

	tag, ok := extensions.Get[struct{ Tag string }](outer.Extensions())
	if !ok || tag.Tag != "inner" {
		t.Fatalf("expected to read the inner stream's extension through the outer wrapper")
	}
}

func TestWrapperDelegatesAddrsAndClose(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()

	inner := stream.NewConn(c1)
	outer := decoratingStream{stream.Wrapper{Inner: inner}}

	if outer.LocalAddr() != inner.LocalAddr() {
		t.Fatalf("expected LocalAddr delegation")
	}
	if outer.RemoteAddr() != inner.RemoteAddr() {
		t.Fatalf("expected RemoteAddr delegation")
	}
	if err := outer.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestNewConnPopulatesSocketExtensions(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c2.Close()

	s := stream.NewConn(c1)

	local, ok := extensions.Get[stream.LocalAddr](s.Extensions())
	if !ok || local == nil {
		t.Fatalf("expected LocalAddr extension entry")
	}
	remote, ok := extensions.Get[stream.RemoteAddr](s.Extensions())
	if !ok || remote == nil {
		t.Fatalf("expected RemoteAddr extension entry")
	}
}

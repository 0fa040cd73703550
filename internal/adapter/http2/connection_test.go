package http2

import (
	"bufio"
	"bytes"
	"context"
	"testing"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/ramaframework/rama/internal/core/service"
)

// newTestConnection builds a server-role Connection with just enough state
// wired up to exercise handleHeaders/sendGoAway directly, bypassing the
// preface/SETTINGS exchange Serve would normally do. handleHeaders starts
// serveStream for every accepted stream, so the handler holds each stream
// open until ctx ends and writes nothing while a test inspects buf.
func newTestConnection(buf *bytes.Buffer) *Connection {
	c := &Connection{
		role:           PeerServer,
		w:              bufio.NewWriter(buf),
		localSettings:  DefaultSettings(),
		remoteSettings: DefaultSettings(),
		streams:        xsync.NewMap[uint32, *streamEntry](),
		connSendWindow: newWindow(65535),
		connRecvWindow: newWindow(65535),
		encoder:        NewEncoder(4096),
		decoder:        NewDecoder(4096),
		handler: service.Func[*Request, *Response](func(ctx context.Context, _ *Request) (*Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	}
	return c
}

func headersFrame(streamID uint32, enc *Encoder) Frame {
	block := enc.EncodeHeaderList([]HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.com"},
		{Name: ":path", Value: "/"},
	})
	return Frame{
		FrameHeader: FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: streamID},
		Payload:     block,
	}
}

func TestHandleHeadersRejectsStreamsAboveGoAwayCutoff(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConnection(&buf)

	// Stream 3 arrives and is accepted before any GOAWAY is sent.
	if err := c.handleHeaders(t.Context(), headersFrame(3, c.encoder)); err != nil {
		t.Fatalf("unexpected error accepting stream 3: %v", err)
	}
	if _, ok := c.streams.Load(3); !ok {
		t.Fatalf("expected stream 3 to be tracked")
	}

	if err := c.sendGoAway(ErrNoError, nil); err != nil {
		t.Fatalf("unexpected error sending GOAWAY: %v", err)
	}
	if c.lastProcessedID.Load() != 3 {
		t.Fatalf("expected lastProcessedID to latch to highest remote ID 3, got %d", c.lastProcessedID.Load())
	}
	buf.Reset() // discard the GOAWAY frame bytes so we can isolate what handleHeaders writes next

	// Stream 5 arrives after GOAWAY was sent and exceeds the announced cutoff:
	// it must be refused, not processed.
	if err := c.handleHeaders(t.Context(), headersFrame(5, c.encoder)); err != nil {
		t.Fatalf("unexpected error from handleHeaders on refused stream: %v", err)
	}
	if _, ok := c.streams.Load(5); ok {
		t.Fatalf("expected stream 5 to be refused, not tracked")
	}
	if c.highestRemoteID.Load() != 3 {
		t.Fatalf("expected highestRemoteID to stay at 3, got %d", c.highestRemoteID.Load())
	}

	_ = c.w.Flush()
	f, err := ReadFrame(bufio.NewReader(&buf), DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("unexpected error reading written frame: %v", err)
	}
	if f.Type != FrameRSTStream || f.StreamID != 5 {
		t.Fatalf("expected RST_STREAM on stream 5, got %+v", f.FrameHeader)
	}
	rst, err := ParseRSTStreamFrame(f)
	if err != nil {
		t.Fatalf("unexpected error parsing RST_STREAM: %v", err)
	}
	if rst.ErrorCode != ErrRefusedStream {
		t.Fatalf("expected ErrRefusedStream, got %v", rst.ErrorCode)
	}
}

func TestHandleHeadersAcceptsStreamAtCutoff(t *testing.T) {
	var buf bytes.Buffer
	c := newTestConnection(&buf)

	if err := c.handleHeaders(t.Context(), headersFrame(3, c.encoder)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.sendGoAway(ErrNoError, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A retransmitted/duplicate HEADERS for a stream ID at (not above) the
	// announced cutoff is still within what GOAWAY promised to finish.
	if err := c.handleHeaders(t.Context(), headersFrame(3, c.encoder)); err != nil {
		t.Fatalf("unexpected error accepting stream at cutoff: %v", err)
	}
}

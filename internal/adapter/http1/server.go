package http1

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/core/domain"
	"github.com/ramaframework/rama/internal/core/service"
)

// Request is a parsed HTTP/1 request: head plus an unread body reader framed
// according to RequestBodyLength.
type Request struct {
	Head Head
	Body io.Reader
}

// Response is what a handler produces for one request.
type Response struct {
	Head     Head
	Body     io.Reader
	Trailers Headers // only meaningful if the body is written chunked
}

// UpgradeRequested is returned by Serve when the peer asked for a protocol
// upgrade and the engine answered 101. Stream is the raw byte stream for the
// caller to hand to whatever protocol was negotiated; reads on it first
// drain bytes the HTTP/1 parser had already buffered off the wire before a
// fresh read ever reaches the underlying connection, so the caller sees a
// contiguous stream with nothing lost.
type UpgradeRequested struct {
	Proto  string
	Stream stream.Stream
}

func (e *UpgradeRequested) Error() string {
	return fmt.Sprintf("http1: connection upgraded to %s", e.Proto)
}

// upgradedStream surrenders conn back to the caller while replaying
// whatever the bufio.Reader already pulled off the wire during head
// parsing, the same buffered-replay trick internal/app/listener.go uses
// after peeking a PROXY protocol header.
type upgradedStream struct {
	stream.Wrapper
	r *bufio.Reader
}

func (u *upgradedStream) Read(b []byte) (int, error)  { return u.r.Read(b) }
func (u *upgradedStream) Write(b []byte) (int, error) { return u.Inner.Write(b) }

// Handler serves one HTTP/1 request to a response.
type Handler = service.Service[*Request, *Response]

// ServerConfig bounds a connection's engine behavior.
type ServerConfig struct {
	MaxHeaderBytes int64
	Clock          *DateClock // nil disables the Date header
}

// Serve runs the server-side connection state machine over conn: read head,
// decide framing, optionally 100-continue, dispatch to handler, write
// response, loop while keep-alive holds.
//
// Pipelined requests are dispatched to handler concurrently, but a
// channel-of-channels queue (pending) enforces that responses are written
// back in strict arrival order: a slow handler blocks later responses from
// overtaking it, never the reverse.
func Serve(ctx context.Context, conn stream.Stream, handler Handler, cfg ServerConfig) error {
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderListSize
	}

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	pending := make(chan chan *Response, 64)
	writeErrCh := make(chan error, 1)
	go writeLoop(w, pending, writeErrCh)

	serveErr := readLoop(ctx, conn, r, w, handler, cfg, pending)
	close(pending)

	if werr := <-writeErrCh; werr != nil && serveErr == nil {
		return werr
	}
	return serveErr
}

func readLoop(ctx context.Context, conn stream.Stream, r *bufio.Reader, w *bufio.Writer, handler Handler, cfg ServerConfig, pending chan chan *Response) error {
	for {
		head, err := ParseRequestHead(r, cfg.MaxHeaderBytes)
		if err != nil {
			return err
		}

		bodyLen, err := RequestBodyLength(head.Headers)
		if err != nil {
			return respondAndClose(w, 400, "Bad Request")
		}
		if err := CheckHeaderListSize(head.Headers, cfg.MaxHeaderBytes); err != nil {
			return respondAndClose(w, 431, "Request Header Fields Too Large")
		}

		if proto, upgrading := WantsUpgrade(head.Headers); upgrading {
			if err := writeUpgradeResponse(w, proto); err != nil {
				return err
			}
			return &UpgradeRequested{
				Proto:  proto,
				Stream: &upgradedStream{Wrapper: stream.Wrapper{Inner: conn}, r: r},
			}
		}

		body := bodyReader(r, bodyLen)

		if Wants100Continue(head.Headers) {
			if err := writeInterim(w, 100, "Continue"); err != nil {
				return err
			}
		}

		resultCh := make(chan *Response, 1)
		pending <- resultCh

		req := &Request{Head: head, Body: body}
		go func() {
			resp, err := handler.Serve(ctx, req)
			if err != nil {
				resp = errorResponse(err)
			}
			resultCh <- resp
		}()

		if !KeepAlive(head.Version, head.Headers) {
			// Drain this request's body so a half-read request doesn't
			// corrupt the stream for the response still owed, then stop
			// accepting further pipelined requests.
			_, _ = io.Copy(io.Discard, body)
			return nil
		}
	}
}

func writeLoop(w *bufio.Writer, pending <-chan chan *Response, done chan<- error) {
	for resultCh := range pending {
		resp := <-resultCh
		if resp == nil {
			continue
		}
		if err := writeResponse(w, resp); err != nil {
			// Drain the rest so readLoop's sends never block forever on a
			// reader that's gone, then report the write failure.
			for range pending {
			}
			done <- err
			return
		}
	}
	done <- nil
}

func bodyReader(r *bufio.Reader, bodyLen BodyLength) io.Reader {
	switch bodyLen.Kind {
	case KindKnown:
		return io.LimitReader(r, bodyLen.N)
	case KindChunked:
		return NewChunkedReader(r)
	default:
		return io.LimitReader(r, 0)
	}
}

func writeResponse(w *bufio.Writer, resp *Response) error {
	if err := WriteResponseHead(w, resp.Head); err != nil {
		return err
	}
	if resp.Body == nil {
		return w.Flush()
	}
	if resp.Head.Headers.HasToken("Transfer-Encoding", "chunked") {
		cw := NewChunkedWriter(w)
		if _, err := io.Copy(cw, resp.Body); err != nil {
			return err
		}
		return cw.Close(resp.Trailers)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return err
	}
	return w.Flush()
}

func writeInterim(w *bufio.Writer, status int, reason string) error {
	if err := WriteResponseHead(w, Head{Version: "HTTP/1.1", StatusCode: status, Reason: reason}); err != nil {
		return err
	}
	return w.Flush()
}

func writeUpgradeResponse(w *bufio.Writer, proto string) error {
	head := Head{Version: "HTTP/1.1", StatusCode: 101, Reason: "Switching Protocols"}
	head.Headers.Add("Connection", "upgrade")
	head.Headers.Add("Upgrade", proto)
	if err := WriteResponseHead(w, head); err != nil {
		return err
	}
	return w.Flush()
}

func respondAndClose(w *bufio.Writer, status int, reason string) error {
	head := Head{Version: "HTTP/1.1", StatusCode: status, Reason: reason}
	head.Headers.Add("Connection", "close")
	if err := WriteResponseHead(w, head); err != nil {
		return err
	}
	return w.Flush()
}

func errorResponse(err error) *Response {
	status, reason := 500, "Internal Server Error"
	var coreErr *domain.CoreError
	if errors.As(err, &coreErr) && coreErr.Kind == domain.KindUser {
		status, reason = 400, "Bad Request"
	}
	head := Head{Version: "HTTP/1.1", StatusCode: status, Reason: reason}
	head.Headers.Add("Connection", "close")
	return &Response{Head: head}
}

// Package body implements the streaming body abstraction shared by every
// protocol engine: a Body yields a sequence of frames, each either a data
// chunk or a trailing header block, with a size hint describing what's
// known about the total length up front.
package body

import (
	"context"
	"io"

	"github.com/ramaframework/rama/internal/adapter/http1"
	"github.com/ramaframework/rama/internal/core/domain"
)

// FrameKind distinguishes a Body frame's payload.
type FrameKind int

const (
	FrameData FrameKind = iota
	FrameTrailer
)

// Frame is one unit yielded by a Body: either a Data chunk or a Trailers
// header block (HTTP/1 chunked trailers, HTTP/2 trailing HEADERS, gRPC
// trailing metadata all fit this shape).
type Frame struct {
	Kind     FrameKind
	Data     []byte
	Trailers http1.Headers
}

// SizeHint carries known lower/upper bounds on a Body's total byte count.
// Upper is nil when no upper bound is known (an unbounded stream).
type SizeHint struct {
	Lower uint64
	Upper *uint64
}

// Exact reports a SizeHint with Lower == Upper == n.
func Exact(n uint64) SizeHint {
	upper := n
	return SizeHint{Lower: n, Upper: &upper}
}

// Unbounded reports a SizeHint with no known upper bound.
func Unbounded() SizeHint {
	return SizeHint{}
}

// Body yields a stream of frames. Next returns io.EOF once exhausted; it
// must not be called again afterward.
type Body interface {
	Next(ctx context.Context) (Frame, error)
	Hint() SizeHint
}

type emptyBody struct{}

// Empty returns a Body with no frames and an exact zero-length hint.
func Empty() Body { return emptyBody{} }

func (emptyBody) Next(context.Context) (Frame, error) { return Frame{}, io.EOF }
func (emptyBody) Hint() SizeHint                      { return Exact(0) }

type fullBody struct {
	data []byte
	sent bool
}

// Full returns a Body that yields b as a single data frame, then EOF.
func Full(b []byte) Body {
	return &fullBody{data: b}
}

func (f *fullBody) Next(context.Context) (Frame, error) {
	if f.sent {
		return Frame{}, io.EOF
	}
	f.sent = true
	return Frame{Kind: FrameData, Data: f.data}, nil
}

func (f *fullBody) Hint() SizeHint { return Exact(uint64(len(f.data))) }

const defaultStreamChunk = 32 * 1024

type streamBody struct {
	r       io.Reader
	buf     []byte
	pending error
}

// Stream returns a Body that reads data frames from r until it reports
// io.EOF, chunked at a fixed buffer size. The total length is unknown.
func Stream(r io.Reader) Body {
	return &streamBody{r: r, buf: make([]byte, defaultStreamChunk)}
}

func (s *streamBody) Next(ctx context.Context) (Frame, error) {
	if s.pending != nil {
		return Frame{}, s.pending
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	n, err := s.r.Read(s.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		// A chunk read alongside an error (including io.EOF) is delivered
		// now; the error surfaces on the next call so this read's bytes
		// aren't lost.
		s.pending = err
		return Frame{Kind: FrameData, Data: chunk}, nil
	}
	if err == nil {
		err = io.EOF
	}
	s.pending = err
	return Frame{}, err
}

func (s *streamBody) Hint() SizeHint { return Unbounded() }

type limitedBody struct {
	inner    Body
	maxBytes int64
	seen     int64
}

// Limited wraps inner, failing the stream with a FramingLimitError once more
// than maxBytes of data frames have been read. Trailer frames don't count
// against the limit.
func Limited(inner Body, maxBytes int64) Body {
	return &limitedBody{inner: inner, maxBytes: maxBytes}
}

func (l *limitedBody) Next(ctx context.Context) (Frame, error) {
	frame, err := l.inner.Next(ctx)
	if err != nil {
		return frame, err
	}
	if frame.Kind == FrameData {
		l.seen += int64(len(frame.Data))
		if l.seen > l.maxBytes {
			return Frame{}, &domain.FramingLimitError{
				What:     "body",
				Limit:    l.maxBytes,
				Observed: l.seen,
			}
		}
	}
	return frame, nil
}

func (l *limitedBody) Hint() SizeHint {
	inner := l.inner.Hint()
	max := uint64(l.maxBytes)
	if inner.Upper != nil && *inner.Upper < max {
		return inner
	}
	return SizeHint{Lower: inner.Lower, Upper: &max}
}

// Reader adapts a Body to an io.Reader, for handing off to call sites that
// only know how to write a plain byte stream (the HTTP/1 and HTTP/2 engines'
// Response.Body). Trailer frames are discarded; a caller that needs them
// should read the Body directly instead.
func Reader(ctx context.Context, b Body) io.Reader {
	return &bodyReader{ctx: ctx, body: b}
}

type bodyReader struct {
	ctx  context.Context
	body Body
	buf  []byte
}

func (r *bodyReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		frame, err := r.body.Next(r.ctx)
		if err != nil {
			return 0, err
		}
		if frame.Kind == FrameData {
			r.buf = frame.Data
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// ReadAll drains b into a single byte slice, concatenating every data frame,
// and returns the last trailer block seen (nil if there was none).
// Convenience for callers that don't need streaming.
func ReadAll(ctx context.Context, b Body) ([]byte, http1.Headers, error) {
	var out []byte
	var trailers http1.Headers
	for {
		frame, err := b.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return out, trailers, nil
			}
			return out, trailers, err
		}
		switch frame.Kind {
		case FrameData:
			out = append(out, frame.Data...)
		case FrameTrailer:
			trailers = frame.Trailers
		}
	}
}

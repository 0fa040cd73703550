package http2

import (
	"io"

	"github.com/ramaframework/rama/internal/core/service"
)

// Request is one HTTP/2 stream's request-side view: pseudo-headers decoded
// into their typed fields, regular headers in wire order, and a body reader
// framed by DATA frames up to END_STREAM.
type Request struct {
	Method            string
	Scheme            string
	Authority         string
	Path              string
	Protocol          string // only set for extended CONNECT (RFC 8441)
	PseudoHeaderOrder []string
	Headers           []HeaderField
	Body              io.Reader

	StreamID uint32
}

// Response is what a Handler produces for one stream.
type Response struct {
	Status   int
	Headers  []HeaderField
	Body     io.Reader
	Trailers []HeaderField
}

// Handler serves one HTTP/2 stream to a response.
type Handler = service.Service[*Request, *Response]

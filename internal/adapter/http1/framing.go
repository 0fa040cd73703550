package http1

import (
	"strconv"

	"github.com/ramaframework/rama/internal/core/domain"
)

// DefaultMaxHeaderListSize bounds the total bytes of header names+values a
// parsed head may contain before the parser rejects it as oversized (431).
const DefaultMaxHeaderListSize = 64 * 1024

// RequestBodyLength decides a request's body framing. Transfer-Encoding:
// chunked wins over Content-Length when both are present (the chunked
// encoding is always the final one applied per RFC 7230); absence of both
// means no body.
func RequestBodyLength(h Headers) (BodyLength, error) {
	if h.HasToken("Transfer-Encoding", "chunked") {
		return Chunked(), nil
	}
	if v, ok := h.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return BodyLength{}, &domain.ProtocolError{Detail: "malformed Content-Length", StreamScoped: false}
		}
		return Known(n), nil
	}
	return Empty(), nil
}

// ResponseBodyLength decides a response's body framing. statusAllowsBody
// must be false for 1xx/204/304 and any response to a HEAD request, per RFC
// 7230 §3.3.3 — those never carry a body regardless of headers.
func ResponseBodyLength(h Headers, statusAllowsBody bool) (BodyLength, error) {
	if !statusAllowsBody {
		return Empty(), nil
	}
	if h.HasToken("Transfer-Encoding", "chunked") {
		return Chunked(), nil
	}
	if v, ok := h.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return BodyLength{}, &domain.ProtocolError{Detail: "malformed Content-Length", StreamScoped: false}
		}
		return Known(n), nil
	}
	return CloseDelimited(), nil
}

// CheckHeaderListSize enforces maxBytes against the summed length of every
// header name and value, rejecting with a FramingLimitError (surfaced by the
// caller as a 431 response) on overflow.
func CheckHeaderListSize(h Headers, maxBytes int64) error {
	var total int64
	for _, f := range h {
		total += int64(len(f.Name)) + int64(len(f.Value))
		if total > maxBytes {
			return &domain.FramingLimitError{Limit: maxBytes, Observed: total, What: "header list"}
		}
	}
	return nil
}

// StatusAllowsBody reports whether a response of the given status code (for
// a non-HEAD request) is permitted to carry a body.
func StatusAllowsBody(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == 204 || status == 304:
		return false
	default:
		return true
	}
}

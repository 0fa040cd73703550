// Package app is the composition root: it wires the protocol engines
// (http1, http2, socks5), the TLS and PROXY protocol boundaries, and the
// resolver adapter into a running set of listeners dispatching to one
// router. The connection pool is not wired in.
package app

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/ramaframework/rama/internal/adapter/body"
	"github.com/ramaframework/rama/internal/adapter/http1"
	"github.com/ramaframework/rama/internal/adapter/http2"
	"github.com/ramaframework/rama/internal/adapter/matcher"
	"github.com/ramaframework/rama/internal/adapter/router"
	"github.com/ramaframework/rama/internal/core/extensions"
)

// asHTTP1Handler adapts a router.Handler into an http1.Handler: translating
// the wire Head into matcher.HTTPRequest, wrapping the unread body reader,
// and translating the router.Response back into an http1.Response.
func asHTTP1Handler(rt router.Handler) http1.Handler {
	return http1Bridge{rt}
}

type http1Bridge struct{ rt router.Handler }

func (b http1Bridge) Serve(ctx context.Context, req *http1.Request) (*http1.Response, error) {
	rreq := &router.Request{
		HTTPRequest: httpRequestFromHead(req.Head),
		Body:        body.Stream(req.Body),
		Extensions:  extensions.New(),
	}

	resp, err := b.rt.Serve(ctx, rreq)
	if err != nil {
		return nil, err
	}

	data, _, readErr := body.ReadAll(ctx, resp.Body)
	if readErr != nil {
		return nil, readErr
	}

	head := http1.Head{StatusCode: resp.Status, Reason: reasonPhrase(resp.Status), Headers: resp.Headers}
	return &http1.Response{Head: head, Body: newByteReader(data)}, nil
}

// asHTTP2Handler adapts a router.Handler into an http2.Handler the same way,
// translating HTTP/2's pseudo-header-derived fields instead of a Head.
func asHTTP2Handler(rt router.Handler) http2.Handler {
	return http2Bridge{rt}
}

type http2Bridge struct{ rt router.Handler }

func (b http2Bridge) Serve(ctx context.Context, req *http2.Request) (*http2.Response, error) {
	headers := make(map[string][]string, len(req.Headers))
	for _, f := range req.Headers {
		headers[f.Name] = append(headers[f.Name], f.Value)
	}

	path, rawQuery, _ := strings.Cut(req.Path, "?")
	rreq := &router.Request{
		HTTPRequest: matcher.HTTPRequest{
			Method:    req.Method,
			Path:      path,
			RawQuery:  rawQuery,
			Authority: req.Authority,
			Host:      req.Authority,
			Headers:   headers,
		},
		Body:       body.Stream(req.Body),
		Extensions: extensions.New(),
	}

	resp, err := b.rt.Serve(ctx, rreq)
	if err != nil {
		return nil, err
	}

	data, _, readErr := body.ReadAll(ctx, resp.Body)
	if readErr != nil {
		return nil, readErr
	}

	fields := make([]http2.HeaderField, 0, len(resp.Headers))
	for _, f := range resp.Headers {
		fields = append(fields, http2.HeaderField{Name: f.Name, Value: f.Value})
	}

	return &http2.Response{Status: resp.Status, Headers: fields, Body: newByteReader(data)}, nil
}

func httpRequestFromHead(h http1.Head) matcher.HTTPRequest {
	path, rawQuery, _ := strings.Cut(h.URI, "?")
	headers := make(map[string][]string, len(h.Headers))
	for _, f := range h.Headers {
		headers[f.Name] = append(headers[f.Name], f.Value)
	}
	host, _ := h.Headers.Get("Host")

	return matcher.HTTPRequest{
		Method:    h.Method,
		Path:      path,
		RawQuery:  rawQuery,
		Authority: host,
		Host:      host,
		Headers:   headers,
	}
}

func reasonPhrase(status int) string {
	switch status {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 500:
		return "Internal Server Error"
	default:
		return strconv.Itoa(status)
	}
}

func newByteReader(b []byte) io.Reader { return &byteReader{data: b} }

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

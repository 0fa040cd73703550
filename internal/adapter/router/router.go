// Package router implements a method+path matcher tree that dispatches to a
// Service, plus typed extractors that pull path params, query values, and
// decoded bodies out of a matched request.
package router

import (
	"context"

	"github.com/ramaframework/rama/internal/adapter/body"
	"github.com/ramaframework/rama/internal/adapter/http1"
	"github.com/ramaframework/rama/internal/adapter/matcher"
	"github.com/ramaframework/rama/internal/core/extensions"
	"github.com/ramaframework/rama/internal/core/service"
)

// Request is the router's view of an inbound request: the matchable fields
// from matcher.HTTPRequest plus a body and the Extensions container that
// captured path params (and anything upstream layers inserted) get written
// into.
type Request struct {
	matcher.HTTPRequest
	Body       body.Body
	Extensions *extensions.Extensions
}

// Response is what a routed Handler returns.
type Response struct {
	Status  int
	Headers http1.Headers
	Body    body.Body
}

// Handler is a service dispatched to by a matched route.
type Handler = service.Service[*Request, *Response]

// Rejection is a structured failure with a stable HTTP status code and a
// short message body — what an unmatched route or a failed extractor
// returns, instead of a raw error string.
type Rejection struct {
	Status  int
	Message string
}

func (r *Rejection) Error() string { return r.Message }

// NotFound is returned when no route's path pattern matches the request.
func NotFound() *Rejection { return &Rejection{Status: 404, Message: "not found"} }

// MethodNotAllowed is returned when a route's path matches but no route
// registered for that path accepts the request's method.
func MethodNotAllowed() *Rejection { return &Rejection{Status: 405, Message: "method not allowed"} }

type route struct {
	method  string
	pattern string
	matcher matcher.Matcher[matcher.HTTPRequest]
	handler Handler
}

// Router is a matcher tree over method + path: each registered route is a
// Path matcher (built from C3's path-segment matcher, which captures
// ":param"/"*wildcard" segments) gated on a method, tried in registration
// order.
type Router struct {
	routes []route
}

// New returns an empty Router.
func New() *Router { return &Router{} }

// Handle registers pattern for method, dispatching matches to h. method ""
// matches any method (useful for middleware-style catch-alls).
func (rt *Router) Handle(method, pattern string, h Handler) {
	rt.routes = append(rt.routes, route{
		method:  method,
		pattern: pattern,
		matcher: matcher.Path(pattern),
		handler: h,
	})
}

func (rt *Router) Get(pattern string, h Handler)    { rt.Handle("GET", pattern, h) }
func (rt *Router) Post(pattern string, h Handler)   { rt.Handle("POST", pattern, h) }
func (rt *Router) Put(pattern string, h Handler)    { rt.Handle("PUT", pattern, h) }
func (rt *Router) Delete(pattern string, h Handler) { rt.Handle("DELETE", pattern, h) }
func (rt *Router) Patch(pattern string, h Handler)  { rt.Handle("PATCH", pattern, h) }

// Serve implements Handler itself, so a Router composes with Layers the same
// way any other service does. It reports MethodNotAllowed if some route's
// path matches but none accepts the method, and NotFound if no path
// matches at all.
func (rt *Router) Serve(ctx context.Context, req *Request) (*Response, error) {
	pathMatched := false
	for _, rte := range rt.routes {
		staging := extensions.New()
		if !rte.matcher.Matches(staging, ctx, req.HTTPRequest) {
			continue
		}
		pathMatched = true
		if rte.method != "" && rte.method != req.Method {
			continue
		}

		if req.Extensions == nil {
			req.Extensions = extensions.New()
		}
		req.Extensions.Extend(staging)
		return rte.handler.Serve(ctx, req)
	}

	if pathMatched {
		return nil, MethodNotAllowed()
	}
	return nil, NotFound()
}

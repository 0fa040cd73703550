package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ramaframework/rama/internal/adapter/body"
	"github.com/ramaframework/rama/internal/adapter/matcher"
	"github.com/ramaframework/rama/internal/core/extensions"
)

// Extractor transforms a matched request into a typed argument. Failure
// produces a *Rejection, never a bare error, so a handler or its caller can
// render a stable status code and message without inspecting the cause.
type Extractor[T any] func(ctx context.Context, req *Request) (T, error)

// PathParam extracts a single named capture from the route's UriParams
// (inserted by matcher.Path on match). Rejects with 400 if the param is
// absent — which only happens if the handler references a name its route
// pattern never captured.
func PathParam(name string) Extractor[string] {
	return func(_ context.Context, req *Request) (string, error) {
		params, ok := extensions.Get[matcher.UriParams](req.Extensions)
		if !ok {
			return "", &Rejection{Status: 400, Message: fmt.Sprintf("no path parameters captured for %q", name)}
		}
		v, ok := params[name]
		if !ok {
			return "", &Rejection{Status: 400, Message: fmt.Sprintf("missing path parameter %q", name)}
		}
		return v, nil
	}
}

// Query extracts the first value of a query-string parameter. Rejects with
// 400 if absent.
func Query(name string) Extractor[string] {
	return func(_ context.Context, req *Request) (string, error) {
		values, err := url.ParseQuery(req.RawQuery)
		if err != nil {
			return "", &Rejection{Status: 400, Message: "malformed query string"}
		}
		v := values.Get(name)
		if v == "" && !values.Has(name) {
			return "", &Rejection{Status: 400, Message: fmt.Sprintf("missing query parameter %q", name)}
		}
		return v, nil
	}
}

// Header extracts a single header value, case-insensitively. Rejects with
// 400 if absent.
func Header(name string) Extractor[string] {
	return func(_ context.Context, req *Request) (string, error) {
		v, ok := req.HTTPRequest.Header(name)
		if !ok {
			return "", &Rejection{Status: 400, Message: fmt.Sprintf("missing header %q", name)}
		}
		return v, nil
	}
}

// JSONBody drains the request body and decodes it as JSON into T. Rejects
// with 400 on a read failure or malformed JSON.
func JSONBody[T any]() Extractor[T] {
	return func(ctx context.Context, req *Request) (T, error) {
		var zero T
		if req.Body == nil {
			return zero, &Rejection{Status: 400, Message: "request has no body"}
		}
		raw, _, err := body.ReadAll(ctx, req.Body)
		if err != nil {
			return zero, &Rejection{Status: 400, Message: "failed to read request body"}
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, &Rejection{Status: 400, Message: "malformed JSON body"}
		}
		return v, nil
	}
}

// FormBody drains the request body and parses it as
// application/x-www-form-urlencoded. Rejects with 400 on a read or parse
// failure.
func FormBody() Extractor[url.Values] {
	return func(ctx context.Context, req *Request) (url.Values, error) {
		if req.Body == nil {
			return nil, &Rejection{Status: 400, Message: "request has no body"}
		}
		raw, _, err := body.ReadAll(ctx, req.Body)
		if err != nil {
			return nil, &Rejection{Status: 400, Message: "failed to read request body"}
		}
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, &Rejection{Status: 400, Message: "malformed form body"}
		}
		return values, nil
	}
}

package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ramaframework/rama/internal/adapter/body"
	"github.com/ramaframework/rama/internal/adapter/matcher"
	"github.com/ramaframework/rama/internal/adapter/router"
	"github.com/ramaframework/rama/internal/core/service"
)

func echoHandler(field string) router.Handler {
	return service.Func[*router.Request, *router.Response](func(ctx context.Context, req *router.Request) (*router.Response, error) {
		v, err := router.PathParam(field)(ctx, req)
		if err != nil {
			return nil, err
		}
		return &router.Response{Status: 200, Body: body.Full([]byte(v))}, nil
	})
}

func TestRouterDispatchesOnMethodAndPath(t *testing.T) {
	r := router.New()
	r.Get("/users/:id", echoHandler("id"))

	req := &router.Request{HTTPRequest: matcher.HTTPRequest{Method: "GET", Path: "/users/42"}}
	resp, err := r.Serve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _, _ := body.ReadAll(context.Background(), resp.Body)
	if string(got) != "42" {
		t.Fatalf("got %q", got)
	}
}

func TestRouterReturnsNotFoundWhenNoPathMatches(t *testing.T) {
	r := router.New()
	r.Get("/users/:id", echoHandler("id"))

	req := &router.Request{HTTPRequest: matcher.HTTPRequest{Method: "GET", Path: "/accounts/42"}}
	_, err := r.Serve(context.Background(), req)
	var rej *router.Rejection
	if !errors.As(err, &rej) || rej.Status != 404 {
		t.Fatalf("got %v, want 404 rejection", err)
	}
}

func TestRouterReturnsMethodNotAllowedWhenPathMatchesWrongMethod(t *testing.T) {
	r := router.New()
	r.Post("/users/:id", echoHandler("id"))

	req := &router.Request{HTTPRequest: matcher.HTTPRequest{Method: "GET", Path: "/users/42"}}
	_, err := r.Serve(context.Background(), req)
	var rej *router.Rejection
	if !errors.As(err, &rej) || rej.Status != 405 {
		t.Fatalf("got %v, want 405 rejection", err)
	}
}

func TestPathParamExtractorRejectsMissingParam(t *testing.T) {
	r := router.New()
	r.Get("/users/:id", echoHandler("nonexistent"))

	req := &router.Request{HTTPRequest: matcher.HTTPRequest{Method: "GET", Path: "/users/42"}}
	_, err := r.Serve(context.Background(), req)
	var rej *router.Rejection
	if !errors.As(err, &rej) || rej.Status != 400 {
		t.Fatalf("got %v, want 400 rejection", err)
	}
}

func TestQueryExtractor(t *testing.T) {
	req := &router.Request{HTTPRequest: matcher.HTTPRequest{RawQuery: "q=rama&lang=go"}}
	v, err := router.Query("lang")(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "go" {
		t.Fatalf("got %q", v)
	}

	_, err = router.Query("missing")(context.Background(), req)
	var rej *router.Rejection
	if !errors.As(err, &rej) || rej.Status != 400 {
		t.Fatalf("got %v, want 400 rejection", err)
	}
}

type greeting struct {
	Name string `json:"name"`
}

func TestJSONBodyExtractor(t *testing.T) {
	req := &router.Request{Body: body.Full([]byte(`{"name":"rama"}`))}
	v, err := router.JSONBody[greeting]()(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name != "rama" {
		t.Fatalf("got %+v", v)
	}
}

func TestJSONBodyExtractorRejectsMalformedJSON(t *testing.T) {
	req := &router.Request{Body: body.Full([]byte(`not json`))}
	_, err := router.JSONBody[greeting]()(context.Background(), req)
	var rej *router.Rejection
	if !errors.As(err, &rej) || rej.Status != 400 {
		t.Fatalf("got %v, want 400 rejection", err)
	}
}

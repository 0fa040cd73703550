package matcher_test

import (
	"context"
	"testing"

	"github.com/ramaframework/rama/internal/adapter/matcher"
	"github.com/ramaframework/rama/internal/core/extensions"
)

func req(method, path string) matcher.HTTPRequest {
	return matcher.HTTPRequest{Method: method, Path: path}
}

func TestPathMatcherCapturesParams(t *testing.T) {
	m := matcher.Path("/a/:foo/:bar/b/*rest")
	ext := extensions.New()

	ok := m.Matches(ext, context.Background(), req("GET", "/a/1/2/b/c/d"))
	if !ok {
		t.Fatalf("expected match")
	}

	params, ok := extensions.Get[matcher.UriParams](ext)
	if !ok {
		t.Fatalf("expected UriParams inserted")
	}
	if params["foo"] != "1" || params["bar"] != "2" || params["rest"] != "c/d" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestPathMatcherFailureLeavesExtensionsUntouched(t *testing.T) {
	m := matcher.Path("/a/:foo")
	ext := extensions.New()

	ok := m.Matches(ext, context.Background(), req("GET", "/b/x"))
	if ok {
		t.Fatalf("expected no match")
	}
	if ext.Len() != 0 {
		t.Fatalf("expected no extension writes on failed match")
	}
}

// recordingMatcher always returns want, and if ext is non-nil and want is
// true, records its name so tests can observe which children committed.
type recordingMatcher struct {
	name string
	want bool
}

type name string

func (r recordingMatcher) Matches(ext *extensions.Extensions, _ context.Context, _ matcher.HTTPRequest) bool {
	if !r.want {
		return false
	}
	if ext != nil {
		extensions.Insert(ext, name(r.name))
	}
	return true
}

func TestAndCommitsOnlyWhenAllChildrenMatch(t *testing.T) {
	ext := extensions.New()
	m := matcher.And[matcher.HTTPRequest](
		recordingMatcher{name: "first", want: true},
		recordingMatcher{name: "second", want: false},
	)

	ok := m.Matches(ext, context.Background(), req("GET", "/"))
	if ok {
		t.Fatalf("expected And to fail when a child fails")
	}
	if ext.Len() != 0 {
		t.Fatalf("expected no writes committed when And fails, even though the first child matched")
	}
}

func TestAndCommitsAllWritesWhenEveryChildMatches(t *testing.T) {
	ext := extensions.New()
	m := matcher.And[matcher.HTTPRequest](
		recordingMatcher{name: "first", want: true},
		recordingMatcher{name: "second", want: true},
	)

	ok := m.Matches(ext, context.Background(), req("GET", "/"))
	if !ok {
		t.Fatalf("expected And to succeed")
	}
	got, ok := extensions.Get[name](ext)
	if !ok || got != "second" {
		t.Fatalf("expected last committed write to survive, got %q ok=%v", got, ok)
	}
}

func TestOrCommitsOnlyFirstSuccessfulChild(t *testing.T) {
	ext := extensions.New()
	m := matcher.Or[matcher.HTTPRequest](
		recordingMatcher{name: "skipped", want: false},
		recordingMatcher{name: "winner", want: true},
		recordingMatcher{name: "never-run", want: true},
	)

	ok := m.Matches(ext, context.Background(), req("GET", "/"))
	if !ok {
		t.Fatalf("expected Or to succeed")
	}
	got, ok := extensions.Get[name](ext)
	if !ok || got != "winner" {
		t.Fatalf("expected winner's write committed, got %q ok=%v", got, ok)
	}
}

func TestNotNeverWritesExtensions(t *testing.T) {
	ext := extensions.New()
	m := matcher.Not[matcher.HTTPRequest](recordingMatcher{name: "inner", want: false})

	ok := m.Matches(ext, context.Background(), req("GET", "/"))
	if !ok {
		t.Fatalf("expected Not(false) to match")
	}
	if ext.Len() != 0 {
		t.Fatalf("expected Not to never write extensions")
	}
}

func TestMethodAndDomainMatchers(t *testing.T) {
	getOnly := matcher.Method("GET")
	if !getOnly.Matches(nil, context.Background(), req("GET", "/")) {
		t.Fatalf("expected GET to match")
	}
	if getOnly.Matches(nil, context.Background(), req("POST", "/")) {
		t.Fatalf("expected POST not to match")
	}

	sub := matcher.Domain("example.com", true)
	r := req("GET", "/")
	r.Host = "api.example.com"
	if !sub.Matches(nil, context.Background(), r) {
		t.Fatalf("expected subdomain match")
	}

	r.Host = "notexample.com"
	if sub.Matches(nil, context.Background(), r) {
		t.Fatalf("expected notexample.com to not match example.com")
	}
}

func TestRemoteIPRange(t *testing.T) {
	m, err := matcher.RemoteIPRange("10.0.0.0/8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inRange := req("GET", "/")
	inRange.RemoteAddr = "10.1.2.3:5000"
	if !m.Matches(nil, context.Background(), inRange) {
		t.Fatalf("expected 10.1.2.3 to be in range")
	}

	outOfRange := req("GET", "/")
	outOfRange.RemoteAddr = "192.168.1.1:5000"
	if m.Matches(nil, context.Background(), outOfRange) {
		t.Fatalf("expected 192.168.1.1 to be out of range")
	}
}

// Package matcher implements the predicate core: composable boolean
// tests over a (context, request) pair with transactional writes into an
// Extensions container.
//
// And/Or take a plain slice of Matcher[Req] rather than a fixed-arity tuple,
// since Go has no tuple types. Semantics: commit-on-success, short-circuit.
package matcher

import (
	"context"

	"github.com/ramaframework/rama/internal/core/extensions"
)

// Matcher is a predicate over a request in some context. If ext is non-nil
// and the match succeeds, implementations that extract data (e.g. captured
// path parameters) record it there. A failed match must leave ext untouched.
type Matcher[Req any] interface {
	Matches(ext *extensions.Extensions, ctx context.Context, req Req) bool
}

// Func adapts a plain function with no extension writes to Matcher.
type Func[Req any] func(ctx context.Context, req Req) bool

func (f Func[Req]) Matches(_ *extensions.Extensions, ctx context.Context, req Req) bool {
	return f(ctx, req)
}

// stagingExtensions buffers writes so a child matcher's side effects can be
// discarded without having touched the caller's real Extensions.
type stagingExtensions struct {
	*extensions.Extensions
}

func newStaging() *stagingExtensions {
	return &stagingExtensions{Extensions: extensions.New()}
}

// And matches if every child matches (short-circuiting on the first
// failure). Child extension writes are buffered and committed only if all
// children succeed.
func And[Req any](children ...Matcher[Req]) Matcher[Req] {
	return andMatcher[Req]{children: children}
}

type andMatcher[Req any] struct{ children []Matcher[Req] }

func (m andMatcher[Req]) Matches(ext *extensions.Extensions, ctx context.Context, req Req) bool {
	if ext == nil {
		for _, c := range m.children {
			if !c.Matches(nil, ctx, req) {
				return false
			}
		}
		return true
	}

	staging := newStaging()
	for _, c := range m.children {
		if !c.Matches(staging.Extensions, ctx, req) {
			return false
		}
	}
	ext.Extend(staging.Extensions)
	return true
}

// Or matches if any child matches, committing only the first successful
// child's writes and discarding the rest.
func Or[Req any](children ...Matcher[Req]) Matcher[Req] {
	return orMatcher[Req]{children: children}
}

type orMatcher[Req any] struct{ children []Matcher[Req] }

func (m orMatcher[Req]) Matches(ext *extensions.Extensions, ctx context.Context, req Req) bool {
	for _, c := range m.children {
		if ext == nil {
			if c.Matches(nil, ctx, req) {
				return true
			}
			continue
		}
		staging := newStaging()
		if c.Matches(staging.Extensions, ctx, req) {
			ext.Extend(staging.Extensions)
			return true
		}
	}
	return false
}

// Not inverts a child matcher and never writes to extensions, regardless of
// the child's outcome.
func Not[Req any](inner Matcher[Req]) Matcher[Req] {
	return notMatcher[Req]{inner: inner}
}

type notMatcher[Req any] struct{ inner Matcher[Req] }

func (m notMatcher[Req]) Matches(_ *extensions.Extensions, ctx context.Context, req Req) bool {
	return !m.inner.Matches(nil, ctx, req)
}

// Package resolver implements pluggable DNS resolution: A/AAAA/TXT lookups
// with per-request overrides threaded through Extensions, de-duplicated via
// singleflight, and optionally cached with on-demand expiry — the same
// lazy-reconciliation shape the connection pool uses.
package resolver

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ramaframework/rama/internal/core/extensions"
)

// RecordKind selects which record type to resolve.
type RecordKind int

const (
	A RecordKind = iota
	AAAA
	TXT
)

// Resolver resolves a host to a set of records of the given kind.
type Resolver interface {
	Resolve(ctx context.Context, host string, kind RecordKind) ([]string, error)
}

// Func adapts a plain function to Resolver.
type Func func(ctx context.Context, host string, kind RecordKind) ([]string, error)

func (f Func) Resolve(ctx context.Context, host string, kind RecordKind) ([]string, error) {
	return f(ctx, host, kind)
}

// systemResolver resolves through the process's configured DNS system via
// net.Resolver.
type systemResolver struct {
	inner *net.Resolver
}

// System returns a Resolver backed by Go's standard resolver.
func System() Resolver {
	return systemResolver{inner: net.DefaultResolver}
}

func (s systemResolver) Resolve(ctx context.Context, host string, kind RecordKind) ([]string, error) {
	switch kind {
	case A, AAAA:
		ips, err := s.inner.LookupIP(ctx, ipNetwork(kind), host)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(ips))
		for i, ip := range ips {
			out[i] = ip.String()
		}
		return out, nil
	case TXT:
		return s.inner.LookupTXT(ctx, host)
	default:
		return nil, net.UnknownNetworkError("resolver: unknown record kind")
	}
}

func ipNetwork(kind RecordKind) string {
	if kind == AAAA {
		return "ip6"
	}
	return "ip4"
}

// Override is an Extensions entry: when present on a request, it replaces
// the resolver a connector would otherwise use for that one request only.
type Override struct{ Resolver Resolver }

// FromContext returns the per-request override resolver if one was inserted
// into ext, else falls back to def.
func FromContext(ext *extensions.Extensions, def Resolver) Resolver {
	if ext == nil {
		return def
	}
	if override, ok := extensions.Get[Override](ext); ok && override.Resolver != nil {
		return override.Resolver
	}
	return def
}

// Deduped wraps an inner Resolver so concurrent lookups for the same
// (host, kind) share one in-flight call instead of hammering the upstream
// resolver redundantly.
func Deduped(inner Resolver) Resolver {
	return &dedupedResolver{inner: inner, group: new(singleflight.Group)}
}

type dedupedResolver struct {
	inner Resolver
	group *singleflight.Group
}

func (d *dedupedResolver) Resolve(ctx context.Context, host string, kind RecordKind) ([]string, error) {
	key := recordKey(host, kind)
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		return d.inner.Resolve(ctx, host, kind)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func recordKey(host string, kind RecordKind) string {
	switch kind {
	case A:
		return host + "/A"
	case AAAA:
		return host + "/AAAA"
	case TXT:
		return host + "/TXT"
	default:
		return host + "/?"
	}
}

// cacheEntry holds the last successful answer for a (host, kind) pair.
type cacheEntry struct {
	values    []string
	expiresAt time.Time
}

// Cached wraps an inner Resolver with a TTL cache. Expiry is checked only
// when a lookup for that key is next attempted, the same on-demand
// reconciliation the connection pool uses for idle entries — no background
// sweep goroutine.
func Cached(inner Resolver, ttl time.Duration) Resolver {
	return &cachedResolver{inner: inner, ttl: ttl, entries: make(map[string]cacheEntry)}
}

type cachedResolver struct {
	inner Resolver
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func (c *cachedResolver) Resolve(ctx context.Context, host string, kind RecordKind) ([]string, error) {
	key := recordKey(host, kind)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if time.Now().Before(e.expiresAt) {
			c.mu.Unlock()
			return e.values, nil
		}
		delete(c.entries, key) // expired: drop it now, reconciled lazily
	}
	c.mu.Unlock()

	values, err := c.inner.Resolve(ctx, host, kind)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{values: values, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return values, nil
}

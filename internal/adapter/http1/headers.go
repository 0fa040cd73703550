// Package http1 implements the wire-level HTTP/1.x engine: head parsing and
// encoding that preserves original header order and case, body-length
// framing decisions, chunked transfer-coding, 100-continue, upgrade, and a
// pipelining-safe server dispatch loop.
package http1

import "strings"

// Field is a single header line, keeping the exact name case as received.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered header list. Unlike net/http.Header (a map), it
// preserves both insertion order and original name case — a first-class
// requirement for fingerprinting and faithful forwarding.
type Headers []Field

// Add appends a field, preserving name case as given.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Field{Name: name, Value: value})
}

// Get returns the first value for name, case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value for name, in original order, case-insensitively.
func (h Headers) Values(name string) []string {
	var out []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether name is present, case-insensitively.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Del removes every field named name, case-insensitively, preserving the
// order of what remains.
func (h *Headers) Del(name string) {
	kept := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			kept = append(kept, f)
		}
	}
	*h = kept
}

// HasToken reports whether name's comma-separated value list contains token,
// case-insensitively (used for Connection: close/keep-alive/upgrade and
// Transfer-Encoding: chunked).
func (h Headers) HasToken(name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

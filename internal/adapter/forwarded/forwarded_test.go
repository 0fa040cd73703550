package forwarded_test

import (
	"testing"

	"github.com/ramaframework/rama/internal/adapter/forwarded"
)

func TestParseMultipleElementsPreservesOrder(t *testing.T) {
	chain, err := forwarded.Parse(`for=192.0.2.60;proto=http;by=203.0.113.43, for=198.51.100.17`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("got %d elements, want 2", len(chain))
	}
	if chain[0].For != "192.0.2.60" || chain[0].Proto != "http" || chain[0].By != "203.0.113.43" {
		t.Fatalf("got %+v", chain[0])
	}
	if chain[1].For != "198.51.100.17" {
		t.Fatalf("got %+v", chain[1])
	}
}

func TestParseQuotedIPv6Literal(t *testing.T) {
	chain, err := forwarded.Parse(`For="[2001:db8:cafe::17]:4711"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 1 || chain[0].For != "[2001:db8:cafe::17]:4711" {
		t.Fatalf("got %+v", chain)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	original := forwarded.Chain{
		{For: "192.0.2.60", Proto: "http", By: "203.0.113.43"},
		{For: "[2001:db8:cafe::17]:4711"},
	}
	encoded := original.Encode()
	parsed, err := forwarded.Parse(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 2 || parsed[0] != original[0] || parsed[1] != original[1] {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestFromLegacyAndToLegacy(t *testing.T) {
	chain := forwarded.FromLegacy("203.0.113.1, 70.41.3.18", "example.com", "https")
	if len(chain) != 2 {
		t.Fatalf("got %d elements, want 2", len(chain))
	}
	xff, xfHost, xfProto := chain.ToLegacy()
	if xff != "203.0.113.1, 70.41.3.18" || xfHost != "example.com" || xfProto != "https" {
		t.Fatalf("got (%q, %q, %q)", xff, xfHost, xfProto)
	}
}

func TestClientForReturnsOldestHop(t *testing.T) {
	chain, err := forwarded.Parse(`for=192.0.2.60, for=198.51.100.17`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := chain.ClientFor(); got != "192.0.2.60" {
		t.Fatalf("got %q, want 192.0.2.60", got)
	}
}

func TestParseEmptyHeaderYieldsNilChain(t *testing.T) {
	chain, err := forwarded.Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chain != nil {
		t.Fatalf("got %+v, want nil", chain)
	}
}

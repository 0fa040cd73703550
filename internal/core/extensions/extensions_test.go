package extensions_test

import (
	"testing"

	"github.com/ramaframework/rama/internal/core/extensions"
)

type peerAddr struct{ Addr string }
type upstream struct{ Name string }

func TestInsertGet(t *testing.T) {
	e := extensions.New()

	extensions.Insert(e, peerAddr{Addr: "10.0.0.1:443"})

	got, ok := extensions.Get[peerAddr](e)
	if !ok {
		t.Fatalf("expected peerAddr to be present")
	}
	if got.Addr != "10.0.0.1:443" {
		t.Fatalf("got %q", got.Addr)
	}
}

func TestInsertOverwrites(t *testing.T) {
	e := extensions.New()

	extensions.Insert(e, peerAddr{Addr: "first"})
	extensions.Insert(e, peerAddr{Addr: "second"})

	got, ok := extensions.Get[peerAddr](e)
	if !ok || got.Addr != "second" {
		t.Fatalf("expected second insert to win, got %+v ok=%v", got, ok)
	}
}

func TestRemoveThenGetAbsent(t *testing.T) {
	e := extensions.New()
	extensions.Insert(e, peerAddr{Addr: "x"})

	_, ok := extensions.Remove[peerAddr](e)
	if !ok {
		t.Fatalf("expected remove to find the entry")
	}

	_, ok = extensions.Get[peerAddr](e)
	if ok {
		t.Fatalf("expected absent after remove")
	}
}

func TestDistinctTypesDoNotCollide(t *testing.T) {
	e := extensions.New()
	extensions.Insert(e, peerAddr{Addr: "a"})
	extensions.Insert(e, upstream{Name: "b"})

	if !extensions.Contains[peerAddr](e) || !extensions.Contains[upstream](e) {
		t.Fatalf("expected both types present")
	}
	if e.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", e.Len())
	}
}

func TestExtendOverwritesOnCollisionElseUnion(t *testing.T) {
	a := extensions.New()
	extensions.Insert(a, peerAddr{Addr: "a-addr"})
	extensions.Insert(a, upstream{Name: "a-up"})

	b := extensions.New()
	extensions.Insert(b, peerAddr{Addr: "b-addr"})

	a.Extend(b)

	addr, _ := extensions.Get[peerAddr](a)
	if addr.Addr != "b-addr" {
		t.Fatalf("expected b's value to win on collision, got %q", addr.Addr)
	}
	up, ok := extensions.Get[upstream](a)
	if !ok || up.Name != "a-up" {
		t.Fatalf("expected a's unique entry to survive, got %+v ok=%v", up, ok)
	}
}

func TestClear(t *testing.T) {
	e := extensions.New()
	extensions.Insert(e, peerAddr{Addr: "x"})
	e.Clear()
	if e.Len() != 0 {
		t.Fatalf("expected empty after clear")
	}
}

func TestGetMutMutatesStoredValue(t *testing.T) {
	e := extensions.New()
	extensions.Insert(e, peerAddr{Addr: "before"})

	mut, ok := extensions.GetMut[peerAddr](e)
	if !ok {
		t.Fatalf("expected peerAddr to be present")
	}
	mut.Addr = "after"

	got, ok := extensions.Get[peerAddr](e)
	if !ok || got.Addr != "after" {
		t.Fatalf("expected mutation via GetMut to be visible, got %+v ok=%v", got, ok)
	}
}

func TestGetMutAbsent(t *testing.T) {
	e := extensions.New()
	if _, ok := extensions.GetMut[peerAddr](e); ok {
		t.Fatalf("expected absent type to report ok=false")
	}
}

func TestGetMutReflectsAcrossCalls(t *testing.T) {
	e := extensions.New()
	extensions.Insert(e, peerAddr{Addr: "x"})

	first, _ := extensions.GetMut[peerAddr](e)
	first.Addr = "mutated-once"

	second, ok := extensions.GetMut[peerAddr](e)
	if !ok || second.Addr != "mutated-once" {
		t.Fatalf("expected a later GetMut to see the earlier mutation, got %+v ok=%v", second, ok)
	}

	// Insert replaces the box entirely, so a pointer obtained before Insert
	// must not observe the new value.
	extensions.Insert(e, peerAddr{Addr: "replaced"})
	if second.Addr != "mutated-once" {
		t.Fatalf("expected the old pointer to be detached from the box Insert replaced, got %q", second.Addr)
	}
}

func TestClone(t *testing.T) {
	e := extensions.New()
	extensions.Insert(e, peerAddr{Addr: "x"})

	clone := e.Clone()
	extensions.Insert(clone, peerAddr{Addr: "y"})

	orig, _ := extensions.Get[peerAddr](e)
	if orig.Addr != "x" {
		t.Fatalf("expected original untouched, got %q", orig.Addr)
	}
}

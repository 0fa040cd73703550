// Package extensions implements the type-keyed heterogeneous container
// threaded through every stream and request in rama. For each runtime type T, at
// most one value of type T is stored; insertion order is not observable and
// equality is not defined.
//
// Go has no ambient dynamic-typing registry the way a `TypeId`-keyed map does in
// languages with runtime reflection, so the key space here is built on
// reflect.Type directly rather than a hand-assigned integer tag scheme: every
// concrete Go type already carries a canonical, comparable reflect.Type, which is
// exactly the compile-time registry of participating types a language without
// native type identity would have to build by hand.
//
// Extensions does not own thread-safety beyond what's needed to make concurrent
// use safe to reason about; in the common case every access in a given
// request's lifetime happens from a single task at a time, but the underlying
// map is still an xsync.Map since Extensions values are sometimes handed
// across goroutine boundaries (e.g. a pool lease handed from an acceptor
// goroutine to a worker).
package extensions

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// Extensions is a type-keyed heterogeneous bag. The zero value is not usable;
// construct with New.
type Extensions struct {
	values *xsync.Map[reflect.Type, any]
}

// New creates an empty Extensions container.
func New() *Extensions {
	return &Extensions{values: xsync.NewMap[reflect.Type, any]()}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Insert stores v, overwriting any existing value of the same type. It returns
// the previous value, if any. Values are boxed internally (see GetMut) so
// Insert always allocates a fresh box rather than mutating one already in the
// map — callers wanting to mutate in place should use GetMut instead.
func Insert[T any](e *Extensions, v T) (previous T, had bool) {
	box := new(T)
	*box = v
	old, loaded := e.values.Swap(keyOf[T](), box)
	if !loaded {
		return previous, false
	}
	if oldBox, ok := old.(*T); ok {
		previous = *oldBox
	}
	return previous, true
}

// Get returns the stored value of type T, if present.
func Get[T any](e *Extensions) (T, bool) {
	var zero T
	v, ok := e.values.Load(keyOf[T]())
	if !ok {
		return zero, false
	}
	box, ok := v.(*T)
	if !ok {
		return zero, false
	}
	return *box, true
}

// GetMut returns a pointer to the stored value of type T, if present, so the
// caller can mutate it in place — the returned pointer aliases the same box
// every Get/GetMut call for this type sees until the next Insert or Remove.
func GetMut[T any](e *Extensions) (*T, bool) {
	v, ok := e.values.Load(keyOf[T]())
	if !ok {
		return nil, false
	}
	box, ok := v.(*T)
	if !ok {
		return nil, false
	}
	return box, true
}

// GetOrInsert returns the stored value of type T, inserting def if absent.
func GetOrInsert[T any](e *Extensions, def T) T {
	box := new(T)
	*box = def
	actual, _ := e.values.LoadOrStore(keyOf[T](), box)
	typed, _ := actual.(*T)
	return *typed
}

// Remove deletes the value of type T, returning it if present.
func Remove[T any](e *Extensions) (T, bool) {
	v, ok := e.values.LoadAndDelete(keyOf[T]())
	var zero T
	if !ok {
		return zero, false
	}
	box, ok := v.(*T)
	if !ok {
		return zero, false
	}
	return *box, true
}

// Contains reports whether a value of type T is stored.
func Contains[T any](e *Extensions) bool {
	_, ok := e.values.Load(keyOf[T]())
	return ok
}

// Len returns the number of distinct types currently stored.
func (e *Extensions) Len() int {
	return e.values.Size()
}

// Clear empties the container.
func (e *Extensions) Clear() {
	e.values.Clear()
}

// Extend copies every entry from other into e, overwriting on key collision
// Overwrites on key collision; unique entries from both sides are kept.
func (e *Extensions) Extend(other *Extensions) {
	if other == nil {
		return
	}
	other.values.Range(func(k reflect.Type, v any) bool {
		e.values.Store(k, v)
		return true
	})
}

// Clone returns a shallow copy: the new container is independent, but any
// mutable value it stores is shared with the original.
func (e *Extensions) Clone() *Extensions {
	clone := New()
	if e == nil {
		return clone
	}
	clone.Extend(e)
	return clone
}

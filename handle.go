package poolalloc

import (
	"reflect"
	"unsafe"
)

// Allocator is a stateless handle bound to element type T. All handles
// for the same T forward to one process-wide multi-pool under one mutex,
// so an allocation made through any handle may be freed through any
// other. Handles for distinct types share nothing and operate fully in
// parallel.
//
// The zero value is ready to use; every Allocator[T] value compares equal
// with ==. Rebinding to another element type is instantiating
// Allocator[U], which reaches U's own multi-pool.
type Allocator[T any] struct{}

// NewAllocator returns a handle for T.
func NewAllocator[T any]() Allocator[T] {
	return Allocator[T]{}
}

// slotLayout returns the per-slot size and alignment for T. Zero-sized
// types still occupy one byte so every live pointer stays distinct.
func slotLayout[T any]() (size, align uintptr) {
	var zero T
	size = unsafe.Sizeof(zero)
	align = unsafe.Alignof(zero)
	if size == 0 {
		size = 1
	}
	return size, align
}

// Allocate returns raw storage for one T. The slot is not zeroed beyond
// what the backing mapping guarantees and no constructor runs; callers
// initialize the value themselves.
func (Allocator[T]) Allocate() (*T, error) {
	size, align := slotLayout[T]()
	tp, err := typedPoolFor(reflect.TypeFor[T](), size, align)
	if err != nil {
		return nil, err
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()
	p, err := tp.mp.Allocate(1)
	if err != nil {
		return nil, err
	}
	return (*T)(p), nil
}

// Deallocate releases a pointer previously returned by any handle for T.
// Deallocating nil is a no-op.
func (Allocator[T]) Deallocate(p *T) {
	if p == nil {
		return
	}
	tp := lookupTypedPool(reflect.TypeFor[T]())
	if tp == nil {
		// No pool was ever created for T, so p cannot be ours.
		return
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.mp.Deallocate(unsafe.Pointer(p), 1)
}

// Stats returns a snapshot of T's multi-pool. The zero snapshot is
// returned when no handle for T has allocated yet.
func (Allocator[T]) Stats() MultiPoolStats {
	tp := lookupTypedPool(reflect.TypeFor[T]())
	if tp == nil {
		return MultiPoolStats{}
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.mp.Stats()
}

package poolalloc

import (
	"reflect"
	"sync"
)

// typedPool pairs the process-wide multi-pool for one element type with
// the mutex that serializes every operation on it.
type typedPool struct {
	mu sync.Mutex
	mp *MultiPool
}

// registry holds the lazily-created multi-pool for each element type.
// Lookups on the allocation path go through the sync.Map so handles for
// distinct types never contend; createMu guards initialization so the
// first construction for a type wins.
var registry = struct {
	createMu sync.Mutex
	pools    sync.Map // reflect.Type -> *typedPool
}{}

// typedPoolFor returns the shared pool for elem, creating it on first
// use. Creation maps the first block, which can fail.
func typedPoolFor(elem reflect.Type, slotSize, slotAlign uintptr) (*typedPool, error) {
	if v, ok := registry.pools.Load(elem); ok {
		return v.(*typedPool), nil
	}

	registry.createMu.Lock()
	defer registry.createMu.Unlock()
	if v, ok := registry.pools.Load(elem); ok {
		return v.(*typedPool), nil
	}
	mp, err := NewMultiPool(slotSize, slotAlign)
	if err != nil {
		return nil, err
	}
	tp := &typedPool{mp: mp}
	registry.pools.Store(elem, tp)
	return tp, nil
}

// lookupTypedPool returns the shared pool for elem without creating one.
func lookupTypedPool(elem reflect.Type) *typedPool {
	if v, ok := registry.pools.Load(elem); ok {
		return v.(*typedPool)
	}
	return nil
}

// ReleaseAll tears down every per-type multi-pool and empties the
// registry. Every pointer handed out through any handle becomes invalid.
// Intended for process shutdown and test hygiene; concurrent allocator
// use during the call is a contract violation.
func ReleaseAll() error {
	registry.createMu.Lock()
	defer registry.createMu.Unlock()

	var firstErr error
	registry.pools.Range(func(key, value any) bool {
		tp := value.(*typedPool)
		tp.mu.Lock()
		if err := tp.mp.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		tp.mu.Unlock()
		registry.pools.Delete(key)
		return true
	})
	return firstErr
}

// Package mem provides raw page-aligned memory regions for the slot
// allocator. Where the platform supports it, regions live outside the Go
// heap so pooled slots never contribute to garbage collector scan work.
package mem

import (
	"fmt"
	"os"
	"unsafe"
)

// Region is a single contiguous run of raw memory obtained from a Backend.
// The base address is page-aligned for every backend.
type Region struct {
	data    []byte
	release func([]byte) error
}

// Base returns the address of the first byte of the region.
func (r *Region) Base() uintptr {
	if len(r.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.data[0]))
}

// Len returns the usable length of the region in bytes.
func (r *Region) Len() uintptr {
	return uintptr(len(r.data))
}

// Unmap releases the region back to its backend. The memory must not be
// accessed afterwards. Unmapping an already-released region is a no-op.
func (r *Region) Unmap() error {
	if r.data == nil {
		return nil
	}
	data, release := r.data, r.release
	r.data, r.release = nil, nil
	if release == nil {
		return nil
	}
	return release(data)
}

// Backend obtains raw regions for block storage.
type Backend interface {
	// Map returns a zeroed, page-aligned region of at least size bytes.
	Map(size uintptr) (*Region, error)
}

// PageSize reports the operating system page size.
func PageSize() uintptr {
	return uintptr(os.Getpagesize())
}

type heapBackend struct{}

// Heap returns a Backend serving regions from the Go heap. The mapped
// System backend is preferred in production; heap regions keep tests and
// platforms without a raw mapping primitive working.
func Heap() Backend {
	return heapBackend{}
}

func (heapBackend) Map(size uintptr) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("mem: zero-length region")
	}
	page := PageSize()
	// Over-allocate by one page so the usable range can start on a page
	// boundary regardless of where the runtime places the buffer.
	buf := make([]byte, size+page)
	base := uintptr(unsafe.Pointer(&buf[0]))
	var off uintptr
	if rem := base % page; rem != 0 {
		off = page - rem
	}
	data := buf[off : off+size : off+size]
	return &Region{data: data, release: func([]byte) error { return nil }}, nil
}

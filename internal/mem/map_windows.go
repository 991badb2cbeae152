//go:build windows

package mem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type virtualAllocBackend struct{}

// System returns the platform mapping backend, backed by VirtualAlloc.
// Regions obtained here are invisible to the Go garbage collector and are
// returned to the kernel on Unmap.
func System() Backend {
	return virtualAllocBackend{}
}

func (virtualAllocBackend) Map(size uintptr) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("mem: zero-length region")
	}
	addr, err := windows.VirtualAlloc(0, size,
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("mem: VirtualAlloc %d bytes: %w", size, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	release := func(b []byte) error {
		return windows.VirtualFree(uintptr(unsafe.Pointer(&b[0])), 0, windows.MEM_RELEASE)
	}
	return &Region{data: data, release: release}, nil
}

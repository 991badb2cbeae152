//go:build unix

package mem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type mmapBackend struct{}

// System returns the platform mapping backend, backed by anonymous
// private mmap(2). Regions obtained here are invisible to the Go garbage
// collector and are returned to the kernel on Unmap.
func System() Backend {
	return mmapBackend{}
}

func (mmapBackend) Map(size uintptr) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("mem: zero-length region")
	}
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mem: mmap %d bytes: %w", size, err)
	}
	return &Region{data: data, release: unix.Munmap}, nil
}

//go:build !unix && !windows

package mem

// System falls back to heap-served regions on platforms without a raw
// mapping primitive.
func System() Backend {
	return Heap()
}

package poolalloc

// MultiPoolStats is a point-in-time snapshot of a multi-pool.
type MultiPoolStats struct {
	AllocationCount uint64
	FreeCount       uint64
	Live            uint64
	Blocks          int
	SlotCapacity    uint64
	BytesMapped     uintptr
}

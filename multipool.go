package poolalloc

import (
	"fmt"
	"unsafe"

	"github.com/orizon-lang/poolalloc/internal/bitops"
	"github.com/orizon-lang/poolalloc/internal/mem"
)

// block is a contiguous run of WordBits pools carved out of one mapped
// region. unmaxed summarizes the pools: bit i is set iff pool i still has
// a free slot.
type block struct {
	region  *mem.Region
	base    uintptr
	unmaxed uint64
	pools   [WordBits]Pool
}

// MultiPool owns a growing sequence of blocks serving slots of one fixed
// size. Blocks are appended on demand and released only by Close; the
// sequence never shrinks.
//
// A MultiPool performs no locking of its own. Concurrent callers must
// serialize access externally, as the per-type handle layer does.
type MultiPool struct {
	config   *Config
	slotSize uintptr
	blocks   []*block
	closed   bool

	allocCount uint64
	freeCount  uint64
}

// NewMultiPool creates a multi-pool for slots of the given size and
// alignment and maps its first block. Alignment must be a power of two no
// larger than one page; block bases are page-aligned, so rounding the
// slot size up to the alignment keeps every slot correctly aligned.
func NewMultiPool(slotSize, slotAlign uintptr, opts ...Option) (*MultiPool, error) {
	if slotSize == 0 {
		return nil, newContractError("SLOT_SIZE", "slot size must be greater than 0")
	}
	if slotAlign == 0 || slotAlign&(slotAlign-1) != 0 {
		return nil, newContractError("SLOT_ALIGN", fmt.Sprintf("alignment %d is not a power of two", slotAlign))
	}
	if slotAlign > mem.PageSize() {
		return nil, newContractError("SLOT_ALIGN", fmt.Sprintf("alignment %d exceeds the page size", slotAlign))
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	mp := &MultiPool{
		config:   config,
		slotSize: alignUp(slotSize, slotAlign),
	}
	if _, err := mp.newBlock(); err != nil {
		return nil, err
	}
	return mp, nil
}

// newBlock maps storage for WordBits pools, initializes them, and appends
// the block record with every pool marked unmaxed.
func (mp *MultiPool) newBlock() (*block, error) {
	region, err := mp.config.Backend.Map(mp.slotSize * BlockCapacity)
	if err != nil {
		return nil, newBackingError(err)
	}

	b := &block{
		region:  region,
		base:    region.Base(),
		unmaxed: allOnes,
	}
	poolBytes := mp.slotSize * PoolCapacity
	for i := range b.pools {
		b.pools[i].init(b.base+uintptr(i)*poolBytes, mp.slotSize)
	}

	mp.blocks = append(mp.blocks, b)
	return b, nil
}

// Allocate returns storage for exactly one slot. Requests with n != 1 are
// a contract violation. The only genuine failure is the backing store
// refusing a new block; in that case no state changes.
//
// Blocks are scanned tail to head: the newest block is the most likely to
// have free pools, so the common case inspects a single block.
func (mp *MultiPool) Allocate(n int) (unsafe.Pointer, error) {
	if n != 1 {
		if mp.config.EnableDebug {
			panic(fmt.Sprintf("poolalloc: multi-slot request (n=%d)", n))
		}
		return nil, newContractError("MULTI_SLOT", fmt.Sprintf("requested %d slots, only single-slot allocation is supported", n))
	}
	if mp.closed {
		return nil, newContractError("CLOSED", "allocate on a closed multi-pool")
	}

	for i := len(mp.blocks) - 1; i >= 0; i-- {
		b := mp.blocks[i]
		if b.unmaxed == 0 {
			continue
		}
		return mp.allocateFrom(b), nil
	}

	b, err := mp.newBlock()
	if err != nil {
		return nil, err
	}
	return mp.allocateFrom(b), nil
}

func (mp *MultiPool) allocateFrom(b *block) unsafe.Pointer {
	i := bitops.TrailingZeros64(b.unmaxed)
	ptr := b.pools[i].allocate()
	if b.pools[i].Full() {
		b.unmaxed &^= uint64(1) << i
	}
	if mp.config.EnableTracking {
		mp.allocCount++
	}
	return ptr
}

// Deallocate releases a pointer previously returned by Allocate. The
// owning block is found by address range, so allocated objects carry no
// back-pointer. Freeing a foreign pointer or freeing twice is a contract
// violation and panics under debug checks. Otherwise a foreign pointer is
// ignored and a double free is not detected: the slot stays free, but the
// free counter behind Stats still advances.
func (mp *MultiPool) Deallocate(p unsafe.Pointer, n int) {
	if n != 1 {
		if mp.config.EnableDebug {
			panic(fmt.Sprintf("poolalloc: multi-slot free (n=%d)", n))
		}
		return
	}
	if p == nil {
		return
	}

	addr := uintptr(p)
	poolBytes := mp.slotSize * PoolCapacity
	for i := len(mp.blocks) - 1; i >= 0; i-- {
		b := mp.blocks[i]
		if addr < b.base {
			continue
		}
		poolIdx := (addr - b.base) / poolBytes
		if poolIdx >= WordBits || !b.pools[poolIdx].contains(p) {
			continue
		}
		if mp.config.EnableDebug && b.pools[poolIdx].isFree(p) {
			panic(fmt.Sprintf("poolalloc: double free of %#x", addr))
		}
		b.pools[poolIdx].deallocate(p)
		b.unmaxed |= uint64(1) << poolIdx
		if mp.config.EnableTracking {
			mp.freeCount++
		}
		return
	}

	if mp.config.EnableDebug {
		panic(fmt.Sprintf("poolalloc: free of foreign pointer %#x", addr))
	}
}

// Blocks returns the number of blocks currently owned.
func (mp *MultiPool) Blocks() int {
	return len(mp.blocks)
}

// SlotSize returns the aligned per-slot size in bytes.
func (mp *MultiPool) SlotSize() uintptr {
	return mp.slotSize
}

// Stats returns a snapshot of the allocation counters. Counters are zero
// when tracking is disabled; capacity figures are always populated.
func (mp *MultiPool) Stats() MultiPoolStats {
	return MultiPoolStats{
		AllocationCount: mp.allocCount,
		FreeCount:       mp.freeCount,
		Live:            mp.allocCount - mp.freeCount,
		Blocks:          len(mp.blocks),
		SlotCapacity:    uint64(len(mp.blocks)) * BlockCapacity,
		BytesMapped:     uintptr(len(mp.blocks)) * mp.slotSize * BlockCapacity,
	}
}

// Close unmaps every block in insertion order. The multi-pool and every
// pointer it ever returned are invalid afterwards.
func (mp *MultiPool) Close() error {
	if mp.closed {
		return nil
	}
	mp.closed = true

	var firstErr error
	for _, b := range mp.blocks {
		if err := b.region.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	mp.blocks = nil
	return firstErr
}

// checkInvariants walks every block and pool verifying tier coherence and
// the block summaries. Test helper.
func (mp *MultiPool) checkInvariants() error {
	for bi, b := range mp.blocks {
		for i := range b.pools {
			p := &b.pools[i]
			if !p.checkTiers() {
				return fmt.Errorf("block %d pool %d: tier mismatch", bi, i)
			}
			unmaxed := b.unmaxed&(uint64(1)<<i) != 0
			if unmaxed == p.Full() {
				return fmt.Errorf("block %d pool %d: unmaxed bit %v but full=%v", bi, i, unmaxed, p.Full())
			}
		}
	}
	return nil
}

// alignUp rounds n up to the next multiple of align. align must be a
// power of 2.
func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

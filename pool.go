// Package poolalloc implements a fixed-size object pool allocator for
// workloads that churn many small objects of one type, such as the nodes
// of tree- or list-based containers. A two-tier bitmap indexes every pool,
// giving O(1) allocate and deallocate with no per-object metadata.
//
// The package exposes two surfaces: MultiPool, the stateful allocator for
// one slot size, and Allocator[T], a stateless handle that forwards to a
// process-wide multi-pool shared by every handle of the same element type.
package poolalloc

import (
	"unsafe"

	"github.com/orizon-lang/poolalloc/internal/bitops"
)

const (
	// WordBits is the width of one bitmap word. Both tiers of the pool
	// bitmap are exactly this wide.
	WordBits = 64

	// PoolCapacity is the number of slots one pool holds.
	PoolCapacity = WordBits * WordBits

	// BlockCapacity is the number of slots one block of pools holds.
	BlockCapacity = PoolCapacity * WordBits
)

const allOnes = ^uint64(0)

// Pool manages a fixed grid of PoolCapacity same-size slots through a
// two-tier bitmap. The slot storage itself is owned by the enclosing
// block; the pool only records the base address.
//
// freeSlots holds one word per group of WordBits slots: bit s of word k
// is set iff slot k*WordBits+s is free. freeWords summarizes the groups:
// bit k is set iff freeSlots[k] has any free slot.
type Pool struct {
	base      uintptr
	slotSize  uintptr
	freeWords uint64
	freeSlots [WordBits]uint64
}

func (p *Pool) init(base, slotSize uintptr) {
	p.base = base
	p.slotSize = slotSize
	p.freeWords = allOnes
	for k := range p.freeSlots {
		p.freeSlots[k] = allOnes
	}
}

// Full reports whether the pool has no free slot left.
func (p *Pool) Full() bool {
	return p.freeWords == 0
}

// allocate returns the lowest free slot. The caller must have checked
// Full; scanning an empty bitmap is an invariant breach.
func (p *Pool) allocate() unsafe.Pointer {
	k := bitops.TrailingZeros64(p.freeWords)
	s := bitops.TrailingZeros64(p.freeSlots[k])
	p.freeSlots[k] &^= uint64(1) << s
	if p.freeSlots[k] == 0 {
		p.freeWords &^= uint64(1) << k
	}
	return unsafe.Pointer(p.base + uintptr(k*WordBits+s)*p.slotSize)
}

// deallocate returns a slot previously handed out by allocate. The
// summary bit is set unconditionally: the group has a free slot again no
// matter how many others are still taken.
func (p *Pool) deallocate(ptr unsafe.Pointer) {
	idx := (uintptr(ptr) - p.base) / p.slotSize
	k := idx / WordBits
	s := idx % WordBits
	p.freeSlots[k] |= uint64(1) << s
	p.freeWords |= uint64(1) << k
}

// contains reports whether ptr falls inside this pool's slot storage.
func (p *Pool) contains(ptr unsafe.Pointer) bool {
	addr := uintptr(ptr)
	return addr >= p.base && addr-p.base < p.dataLen()
}

// isFree reports whether the slot holding ptr is currently unowned.
// Debug-mode double-free detection only.
func (p *Pool) isFree(ptr unsafe.Pointer) bool {
	idx := (uintptr(ptr) - p.base) / p.slotSize
	return p.freeSlots[idx/WordBits]&(uint64(1)<<(idx%WordBits)) != 0
}

func (p *Pool) dataLen() uintptr {
	return PoolCapacity * p.slotSize
}

// freeCount returns the number of free slots. Test and stats helper.
func (p *Pool) freeCount() int {
	n := 0
	for _, w := range p.freeSlots {
		n += bitops.OnesCount64(w)
	}
	return n
}

// checkTiers verifies the coherence of the two bitmap tiers: a summary
// bit is set exactly when its group word is non-zero.
func (p *Pool) checkTiers() bool {
	for k, w := range p.freeSlots {
		if (p.freeWords&(uint64(1)<<k) != 0) != (w != 0) {
			return false
		}
	}
	return true
}

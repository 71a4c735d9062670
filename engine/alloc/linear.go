// Package alloc provides the two per-frame allocators the backend hands to
// pass encoders: a bump-pointer LinearAllocator over a scratch buffer
// region, and a mutex-protected StagingAllocator for ad-hoc upload buffers.
package alloc

import (
	"github.com/nullrend/vkfg/engine/core"
)

// DefaultAlignment is the minimum alignment every bump allocation is rounded
// up to, matching the component's documented default.
const DefaultAlignment = 256

// LinearAllocator hands out write-mapped offsets inside a region of a larger
// per-frame scratch buffer. One instance belongs to exactly one recording
// context (one per pass); it is not safe for concurrent use across contexts.
type LinearAllocator struct {
	mapped    []byte
	base      uint64
	cursor    uint64
	capacity  uint64
	alignment uint64
}

// NewLinearAllocator wraps a region [base, base+capacity) of mapped, a
// pointer into the backing per-frame buffer's persistently mapped memory.
func NewLinearAllocator(mapped []byte, base, capacity uint64) *LinearAllocator {
	return &LinearAllocator{
		mapped:    mapped,
		base:      base,
		capacity:  capacity,
		alignment: DefaultAlignment,
	}
}

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}

// Allocate bumps the cursor by numBytes rounded up to the alignment and
// returns the mapped slice and the offset into the backing buffer. It fails
// without side effect if the region would overflow.
func (a *LinearAllocator) Allocate(numBytes uint64) ([]byte, uint64, error) {
	aligned := alignUp(a.cursor, a.alignment)
	if aligned+numBytes > a.capacity {
		return nil, 0, core.ErrSubAllocatorOverflow
	}
	offset := a.base + aligned
	a.cursor = aligned + numBytes
	return a.mapped[offset : offset+numBytes], offset, nil
}

// Reset returns the cursor to the region's base, as done once per frame when
// the owning pass encoder is re-provisioned.
func (a *LinearAllocator) Reset() {
	a.cursor = 0
}

// Used reports the number of bytes currently allocated from the region.
func (a *LinearAllocator) Used() uint64 { return a.cursor }

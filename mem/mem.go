// Package mem implements the frame pool (spec.md §4.B, component B): a
// fixed set of physical page frames allocated/freed by the fault resolver
// and the eviction engine. Grounded on biscuit mem/mem.go's Physmem_t
// freelist allocator (index-linked free list over a preallocated slice,
// Refpg_new/_phys_put-style alloc/free). Biscuit shards the freelist
// per-CPU; spec.md §1 assumes a single CPU, so that sharding has no
// SPEC_FULL.md component to serve and is dropped in favor of one global
// freelist under one mutex (see DESIGN.md).
package mem

import (
	"fmt"
	"sync"

	humanize "github.com/dustin/go-humanize"
)

// PageSize is the size of one physical frame in bytes.
const PageSize = 4096

// Frame identifies one physical page frame by index into the pool's arena.
// Frame(0) is a valid frame (the first one handed out); on exhaustion
// Pool.Allocate returns ok=false and the out-of-range Frame(-1).
type Frame int

const noFrame = Frame(-1)

// Pool is a fixed-size freelist allocator over a byte arena, standing in
// for the external page allocator spec.md §4.B backs onto.
type Pool struct {
	mu      sync.Mutex
	arena   []byte
	nexti   []int32 // free-list links, parallel to arena pages
	free    int32   // head of the free list, or -1
	freeLen int
	total   int
}

// NewPool allocates a frame pool of the given frame count.
func NewPool(frames int) *Pool {
	if frames <= 0 {
		panic("mem: pool must have at least one frame")
	}
	p := &Pool{
		arena: make([]byte, frames*PageSize),
		nexti: make([]int32, frames),
		total: frames,
	}
	for i := 0; i < frames; i++ {
		if i == frames-1 {
			p.nexti[i] = -1
		} else {
			p.nexti[i] = int32(i + 1)
		}
	}
	p.free = 0
	p.freeLen = frames
	fmt.Printf("mem: reserved %d frames (%s)\n", frames, humanize.Bytes(uint64(len(p.arena))))
	return p
}

// Total reports the number of frames in the pool.
func (p *Pool) Total() int { return p.total }

// Avail reports the number of currently unallocated frames.
func (p *Pool) Avail() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freeLen
}

// Allocate takes one frame from the pool. When zero is true the returned
// frame's bytes are cleared first, mirroring spec.md §4.B's "zeroing is a
// flag on allocation." Allocate never evicts: the caller is responsible
// for running the eviction engine and retrying on exhaustion (spec.md
// §4.B: "the caller — never the pool — invokes the eviction engine").
func (p *Pool) Allocate(zero bool) (Frame, bool) {
	p.mu.Lock()
	if p.free == -1 {
		p.mu.Unlock()
		return noFrame, false
	}
	idx := p.free
	p.free = p.nexti[idx]
	p.freeLen--
	p.mu.Unlock()
	f := Frame(idx)
	if zero {
		clear(p.Bytes(f))
	}
	return f, true
}

// Free returns a frame to the pool.
func (p *Pool) Free(f Frame) {
	if f < 0 || int(f) >= p.total {
		panic("mem: freeing frame outside pool")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nexti[f] = p.free
	p.free = int32(f)
	p.freeLen++
}

// Bytes returns the page-sized byte slice backing frame f. Callers may
// read or write it directly; there is no copy-on-write or reference
// counting in this design (spec.md §1 Non-goals excludes COW).
func (p *Pool) Bytes(f Frame) []byte {
	off := int(f) * PageSize
	return p.arena[off : off+PageSize]
}

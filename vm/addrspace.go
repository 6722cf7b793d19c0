package vm

import (
	"wafer/defs"
	"wafer/mmu"
)

// AddrSpace is one process's virtual address space: its page directory
// and its own supplementary page table, tied to the process-global
// Subsystem that owns the frame table, swap table, and eviction cursor.
// Mirrors biscuit's Vm_t embedding a Pmap plus per-process bookkeeping
// behind a single lock, generalized from biscuit's per-process lock to
// the single VM-wide lock spec.md §9 calls for (held by Subsystem, not
// AddrSpace itself).
type AddrSpace struct {
	Owner defs.PID
	Dir   mmu.Directory
	Supp  SuppTable

	// StackLimit is the lowest vpage the stack has grown to, updated by
	// ResolveFault step 4 (stack growth). Used only for accounting; the
	// stack-growth decision itself is the esp-32 heuristic of spec.md §6.
	StackLimit uintptr
}

// NewAddrSpace returns an address space with a fresh software page
// directory, owned by pid.
func NewAddrSpace(pid defs.PID) *AddrSpace {
	return &AddrSpace{Owner: pid, Dir: mmu.NewSoftware()}
}

// Touch records an access (and, if write is true, a modification) to
// vpage, standing in for the hardware accessed/dirty bits a real MMU
// sets on every TLB-served reference. Call sites that simulate user
// memory access (tests, the syscall read/write paths) call this so the
// eviction engine and the round-trip dirty-path tests observe the bits
// spec.md assumes hardware maintains.
func (as *AddrSpace) Touch(vpage uintptr, write bool) {
	as.Dir.SetAccessed(vpage, true)
	if write {
		as.Dir.SetDirty(vpage, true)
	}
}

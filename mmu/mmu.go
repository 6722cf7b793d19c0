// Package mmu models the opaque MMU driver spec.md §1 calls out as an
// external collaborator: "the MMU/page-table driver (opaque
// install/invalidate/accessed-bit operations)". Grounded on biscuit's
// vm/as.go PTE-bit vocabulary (PTE_P present, PTE_W writable, PTE_U user,
// PTE_A accessed, PTE_D dirty, all folded into the Pa_t physical-address
// word via bitwise flags) and on Pintos's pagedir_set_accessed/
// pagedir_set_dirty/pagedir_is_accessed/pagedir_is_dirty
// (original_source/src/userprog/pagedir.c), which is the exact accessed/
// dirty query surface the eviction engine and fault resolver need.
package mmu

import (
	"sync"

	"wafer/mem"
)

// Directory is one process's page table, reduced to the operations the
// VM subsystem actually issues against it. A real directory walks x86
// page-table levels; Software, the only implementation here, keeps a map
// instead — the fault resolver and eviction engine only ever see this
// interface, never the representation (spec.md §1's "opaque" guidance).
type Directory interface {
	// Install maps vpage to frame with the given permission, replacing any
	// existing mapping. Present becomes true and the accessed/dirty bits
	// both start clear, mirroring a fresh PTE_P load.
	Install(vpage uintptr, frame mem.Frame, writable bool)
	// Clear unmaps vpage. It is a no-op if vpage is not mapped.
	Clear(vpage uintptr)
	// Lookup reports the frame vpage is mapped to, if any.
	Lookup(vpage uintptr) (frame mem.Frame, writable bool, present bool)
	// Accessed reports and Dirty reports the hardware-maintained
	// reference/modified bits a real MMU sets on TLB-served accesses.
	// This simulated MMU has no TLB to snoop, so callers performing an
	// access are expected to call SetAccessed/SetDirty themselves (see
	// vm.AddrSpace.Touch).
	Accessed(vpage uintptr) bool
	SetAccessed(vpage uintptr, val bool)
	Dirty(vpage uintptr) bool
	SetDirty(vpage uintptr, val bool)
	// Mapped lists every currently-mapped virtual page, in no particular
	// order. Used to tear down a process's mappings on exit.
	Mapped() []uintptr
}

type pte struct {
	frame    mem.Frame
	writable bool
	accessed bool
	dirty    bool
}

// Software is a map-backed Directory.
type Software struct {
	mu      sync.Mutex
	entries map[uintptr]*pte
}

// NewSoftware returns an empty page directory.
func NewSoftware() *Software {
	return &Software{entries: make(map[uintptr]*pte)}
}

func (d *Software) Install(vpage uintptr, frame mem.Frame, writable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[vpage] = &pte{frame: frame, writable: writable}
}

func (d *Software) Clear(vpage uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, vpage)
}

func (d *Software) Lookup(vpage uintptr) (mem.Frame, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[vpage]
	if !ok {
		return 0, false, false
	}
	return e.frame, e.writable, true
}

func (d *Software) Accessed(vpage uintptr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[vpage]; ok {
		return e.accessed
	}
	return false
}

func (d *Software) SetAccessed(vpage uintptr, val bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[vpage]; ok {
		e.accessed = val
	}
}

func (d *Software) Dirty(vpage uintptr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[vpage]; ok {
		return e.dirty
	}
	return false
}

func (d *Software) SetDirty(vpage uintptr, val bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[vpage]; ok {
		e.dirty = val
	}
}

// Mapped lists every currently-mapped virtual page, in no particular
// order. Used by vm.Subsystem.Teardown to clear a process's mappings on
// exit.
func (d *Software) Mapped() []uintptr {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uintptr, 0, len(d.entries))
	for vp := range d.entries {
		out = append(out, vp)
	}
	return out
}

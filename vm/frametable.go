// Package vm implements the four interacting state machines spec.md §1
// calls "the hard part": the frame table, the supplementary page table,
// the eviction engine, and the page-fault resolver, plus the AddrSpace
// that ties one process's page directory to its own supplementary table
// while sharing the process-global frame and swap pools. Grounded on
// Pintos's frame.c/page.c/exception.c (original_source/src/vm) and on
// biscuit's vm/as.go for the Go shape of a page-table-owning struct with
// an embedded lock.
package vm

import "wafer/mem"

// FrameEntry is one live frame-table row: frame mapped to vpage for
// owner, with the permission it was installed with.
type FrameEntry struct {
	Frame    mem.Frame
	VPage    uintptr
	Owner    *AddrSpace
	Writable bool
}

// FrameTable is the process-global collection of live frame mappings,
// spec.md §3's "frame table (set of frame-table entries)". Backed by a
// slice used as an unordered collection: Install appends, Remove does a
// swap-with-last-and-truncate so neither costs more than O(1) beyond the
// linear scan Remove needs to find the victim by identity.
type FrameTable struct {
	entries []FrameEntry
}

// Install appends a new frame-table entry after the caller has already
// installed the MMU mapping, per spec.md §4.D.
func (t *FrameTable) Install(e FrameEntry) {
	t.entries = append(t.entries, e)
}

// RemoveAt detaches the entry at index idx using swap-with-last, which
// is why the eviction cursor treats the table as unordered rather than
// assuming insertion order survives removals (see DESIGN.md).
func (t *FrameTable) RemoveAt(idx int) {
	n := len(t.entries)
	t.entries[idx] = t.entries[n-1]
	t.entries = t.entries[:n-1]
}

// RemoveFrame detaches the entry naming frame f, if present.
func (t *FrameTable) RemoveFrame(f mem.Frame) {
	for i := range t.entries {
		if t.entries[i].Frame == f {
			t.RemoveAt(i)
			return
		}
	}
}

// Len reports the number of live frame-table entries.
func (t *FrameTable) Len() int { return len(t.entries) }

// At returns the entry at index idx. Callers in this package only; the
// index is meaningful solely to the eviction cursor within one sweep.
func (t *FrameTable) At(idx int) FrameEntry { return t.entries[idx] }

// Package swap implements the swap-slot allocator (spec.md §4.C,
// component C): a linear-scan free-slot table over a sector-addressed
// block device, written through a proc.PID/vpage key the way Pintos's
// init_swap_table/swap_table tracks a bitmap of free pages
// (original_source/src/userprog/process.c's swap table calls,
// write_page_to_swap/read_page_from_swap). Boot-time sizing is logged
// with github.com/dustin/go-humanize, mirroring biscuit's own
// Phys_init log line.
package swap

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"wafer/block"
	"wafer/defs"
	"wafer/mem"
)

// Slot is one swap-table entry: a page-sized run of sectors on the swap
// device, plus the owning (vpage, process) key once taken.
type Slot struct {
	Sector   int
	Taken    bool
	VPage    uintptr
	Owner    defs.PID
	Writable bool
}

// Table is the swap device's free-slot table, indexed by slot number.
type Table struct {
	dev          block.Device
	sectorsPerPg int
	slots        []Slot
}

// Init probes dev.Sectors() and partitions the device into page-sized
// slots, each sectorsPerPage = mem.PageSize/dev.SectorSize() sectors
// long, mirroring Pintos's init_swap_table sizing the swap bitmap off
// the partition's sector count.
func (t *Table) Init(dev block.Device) error {
	if mem.PageSize%dev.SectorSize() != 0 {
		return errors.New("swap: page size is not a multiple of sector size")
	}
	t.dev = dev
	t.sectorsPerPg = mem.PageSize / dev.SectorSize()
	n := dev.Sectors() / t.sectorsPerPg
	if n == 0 {
		return errors.New("swap: device too small to hold a single page")
	}
	t.slots = make([]Slot, n)
	for i := range t.slots {
		t.slots[i].Sector = i * t.sectorsPerPg
	}
	fmt.Printf("swap: %d slots (%s) over %d sectors\n", n,
		humanize.Bytes(uint64(n*mem.PageSize)), dev.Sectors())
	return nil
}

// Reserve linear-scans for a free slot and claims it for (vpage, owner),
// matching spec.md's "unordered collection searched linearly for the
// first free slot."
func (t *Table) Reserve(vpage uintptr, owner defs.PID, writable bool) (int, bool) {
	for i := range t.slots {
		if !t.slots[i].Taken {
			t.slots[i].Taken = true
			t.slots[i].VPage = vpage
			t.slots[i].Owner = owner
			t.slots[i].Writable = writable
			return i, true
		}
	}
	return 0, false
}

// Release frees the slot backing (vpage, owner), matching spec.md's
// invariant that there is at most one taken swap slot per (vpage, owner)
// pair: release is a no-op if none is found.
func (t *Table) Release(vpage uintptr, owner defs.PID) {
	for i := range t.slots {
		if t.slots[i].Taken && t.slots[i].VPage == vpage && t.slots[i].Owner == owner {
			t.slots[i] = Slot{Sector: t.slots[i].Sector}
			return
		}
	}
}

// ReleaseOwner frees every slot currently taken by owner, used to tear
// down a process's swap footprint on exit.
func (t *Table) ReleaseOwner(owner defs.PID) {
	for i := range t.slots {
		if t.slots[i].Taken && t.slots[i].Owner == owner {
			t.slots[i] = Slot{Sector: t.slots[i].Sector}
		}
	}
}

// Find reports the slot index currently backing (vpage, owner), if any.
func (t *Table) Find(vpage uintptr, owner defs.PID) (int, bool) {
	for i := range t.slots {
		if t.slots[i].Taken && t.slots[i].VPage == vpage && t.slots[i].Owner == owner {
			return i, true
		}
	}
	return 0, false
}

// Write copies one page's worth of bytes from page into slot idx on the
// backing device.
func (t *Table) Write(idx int, page []byte) error {
	if idx < 0 || idx >= len(t.slots) {
		return errors.New("swap: slot index out of range")
	}
	if len(page) != mem.PageSize {
		return errors.New("swap: page buffer is not PageSize long")
	}
	base := t.slots[idx].Sector
	sz := t.dev.SectorSize()
	for s := 0; s < t.sectorsPerPg; s++ {
		if err := t.dev.WriteSector(base+s, page[s*sz:(s+1)*sz]); err != nil {
			return errors.Wrap(err, "swap: write")
		}
	}
	return nil
}

// Read copies slot idx's page back into page, which must be PageSize long.
func (t *Table) Read(idx int, page []byte) error {
	if idx < 0 || idx >= len(t.slots) {
		return errors.New("swap: slot index out of range")
	}
	if len(page) != mem.PageSize {
		return errors.New("swap: page buffer is not PageSize long")
	}
	base := t.slots[idx].Sector
	sz := t.dev.SectorSize()
	for s := 0; s < t.sectorsPerPg; s++ {
		if err := t.dev.ReadSector(base+s, page[s*sz:(s+1)*sz]); err != nil {
			return errors.Wrap(err, "swap: read")
		}
	}
	return nil
}

// Slot returns a copy of slot idx's metadata.
func (t *Table) Slot(idx int) Slot { return t.slots[idx] }

// Len reports the total number of slots in the table.
func (t *Table) Len() int { return len(t.slots) }

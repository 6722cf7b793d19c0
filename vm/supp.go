package vm

import "wafer/fsdev"

// PageSource names where a non-resident page's bytes come from.
type PageSource int

const (
	// SourceExecutable means the page tiles a PT_LOAD segment of the
	// process's own binary (spec.md §4.H).
	SourceExecutable PageSource = iota
	// SourceMappedFile means the page belongs to a memory-mapped file.
	// spec.md §1 excludes mmap as a Non-goal; this value exists so the
	// entry shape matches spec.md §3 verbatim and a future mmap syscall
	// would not require reshaping SuppEntry.
	SourceMappedFile
)

// SuppEntry describes one not-yet-resident user page: where to fetch its
// bytes from on fault, per spec.md §3's supplementary page-table entry.
type SuppEntry struct {
	VPage      uintptr
	Source     PageSource
	FileHandle fsdev.File
	MapID      int
	Offset     int64
	ReadBytes  int
	ZeroBytes  int
	Writable   bool
}

// SuppTable is one process's supplementary page table: an append-only,
// linearly-scanned collection, per spec.md §4.E. Never mutated by the
// fault path; only the loader (and a would-be mmap collaborator) append.
type SuppTable struct {
	entries []SuppEntry
}

// Record appends entry, per spec.md §4.E's record(entry).
func (s *SuppTable) Record(e SuppEntry) {
	s.entries = append(s.entries, e)
}

// Lookup linear-scans for the entry describing vpage.
func (s *SuppTable) Lookup(vpage uintptr) (SuppEntry, bool) {
	for _, e := range s.entries {
		if e.VPage == vpage {
			return e, true
		}
	}
	return SuppEntry{}, false
}

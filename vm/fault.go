package vm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"wafer/defs"
	"wafer/mem"
)

// UserTop is the address of the kernel/user split: no user mapping may
// reach or exceed it, mirroring Pintos's PHYS_BASE (original_source/src/
// threads/vaddr.h).
const UserTop = uintptr(0xC0000000)

// StackGrowthSlack is the esp-32 constant of spec.md §6, fixed per
// spec.md §9's design note resolving the esp-32-vs-esp-4 literature
// ambiguity in favor of 32 (accommodating PUSHA look-ahead).
const StackGrowthSlack = 32

// Fault carries everything the trap gate captures before re-enabling
// interrupts, per spec.md §4.G/§6: the faulting linear address, the
// error-code flags, and the pre-fault stack/instruction pointers.
type Fault struct {
	Addr  uintptr
	Write bool
	User  bool
	ESP   uintptr
	EIP   uintptr
	// Instr is the faulting instruction's bytes, if resident, used only
	// for the best-effort kill diagnostic below.
	Instr []byte
}

// Kill describes why ResolveFault terminated the faulting process. A
// zero-value Kill (Reason == "") means the fault was resolved and no
// termination occurred.
type Kill struct {
	Reason     string
	Mnemonic   string // best-effort disassembly of the faulting instruction
}

// pageFloor rounds addr down to its containing page.
func pageFloor(addr uintptr) uintptr {
	return addr &^ uintptr(mem.PageSize-1)
}

func validUserAddr(addr uintptr) bool {
	return addr != 0 && addr < UserTop
}

// stackGrowthValid implements spec.md §6's stack-growth validity test:
// a ∈ user range and a ≥ esp-32.
func stackGrowthValid(addr, esp uintptr) bool {
	if !validUserAddr(addr) {
		return false
	}
	if esp < StackGrowthSlack {
		return addr+StackGrowthSlack >= esp
	}
	return addr >= esp-StackGrowthSlack
}

// ResolveFault classifies and services one page fault against as,
// following spec.md §4.G's classification order exactly: unsafe access,
// swap-in, lazy load, stack growth. On success it returns a zero Kill.
// On failure (of the validity test, or of any step's allocation/I/O/
// install), it returns the Kill the caller (proc) should terminate the
// process with, after releasing any frame this call pre-allocated.
func (s *Subsystem) ResolveFault(as *AddrSpace, f Fault) Kill {
	vpage := pageFloor(f.Addr)

	// Step 1: unsafe user access.
	if !f.User || !validUserAddr(f.Addr) {
		return s.killDiagnostic("unsafe user access", f)
	}

	// A write fault against a page that is already resident and mapped
	// read-only is also unsafe access: the page is fully resolved, there
	// is nothing for swap-in/lazy-load/stack-growth to service, and
	// re-running step 3 against it would silently re-install the mapping
	// (mmu.Directory.Install replaces any existing one) and leak the
	// frame it replaces.
	if _, writable, present := as.Dir.Lookup(vpage); present && f.Write && !writable {
		return s.killDiagnostic("unsafe user access", f)
	}

	// Steps 2 and 3 allocate a frame before the lookup; if step 2 does
	// not apply the same frame is kept and reused by step 3 (spec.md
	// §4.G). Only step 4, reached when neither applies, frees this one
	// and allocates a fresh zeroed frame.
	frame, ok := s.allocateOrEvict(as.Owner)
	if !ok {
		return s.killDiagnostic("out of frames", f)
	}

	// Step 2: swap-in.
	if idx, ok := s.Swap.Find(vpage, as.Owner); ok {
		slot := s.Swap.Slot(idx)
		if err := s.Swap.Read(idx, s.Pool.Bytes(frame)); err != nil {
			s.Pool.Free(frame)
			return s.killDiagnostic("swap read failed", f)
		}
		s.Swap.Release(vpage, as.Owner)
		as.Dir.Install(vpage, frame, slot.Writable)
		s.Lock()
		s.Frames.Install(FrameEntry{Frame: frame, VPage: vpage, Owner: as, Writable: slot.Writable})
		s.Unlock()
		return Kill{}
	}

	// Step 3: lazy load.
	if entry, ok := as.Supp.Lookup(vpage); ok {
		buf := s.Pool.Bytes(frame)
		if entry.ReadBytes > 0 {
			entry.FileHandle.Seek(entry.Offset)
			if _, err := entry.FileHandle.Read(buf[:entry.ReadBytes]); err != nil {
				s.Pool.Free(frame)
				return s.killDiagnostic("executable read failed", f)
			}
		}
		for i := entry.ReadBytes; i < entry.ReadBytes+entry.ZeroBytes; i++ {
			buf[i] = 0
		}
		as.Dir.Install(vpage, frame, entry.Writable)
		s.Lock()
		s.Frames.Install(FrameEntry{Frame: frame, VPage: vpage, Owner: as, Writable: entry.Writable})
		s.Unlock()
		return Kill{}
	}

	// Step 4: stack growth, gated by the esp-32 heuristic. Neither step
	// 2 nor step 3 applied, so the pre-allocated frame is returned and a
	// fresh zeroed one is taken instead.
	s.Pool.Free(frame)
	if !stackGrowthValid(f.Addr, f.ESP) {
		return s.killDiagnostic("unsafe user access", f)
	}
	frame, ok = s.allocateOrEvict(as.Owner)
	if !ok {
		return s.killDiagnostic("out of frames growing stack", f)
	}
	clear(s.Pool.Bytes(frame))
	as.Dir.Install(vpage, frame, true)
	s.Lock()
	s.Frames.Install(FrameEntry{Frame: frame, VPage: vpage, Owner: as, Writable: true})
	s.Unlock()
	if vpage < as.StackLimit || as.StackLimit == 0 {
		as.StackLimit = vpage
	}
	return Kill{}
}

// allocateOrEvict allocates a frame, running one eviction sweep and
// retrying once if the pool is exhausted, per spec.md §4.B: "the
// caller — never the pool — invokes the eviction engine and retries."
func (s *Subsystem) allocateOrEvict(owner defs.PID) (mem.Frame, bool) {
	if frame, ok := s.Pool.Allocate(false); ok {
		return frame, true
	}
	if _, ok := s.Evict(owner); !ok {
		return 0, false
	}
	return s.Pool.Allocate(false)
}

// killDiagnostic builds a Kill, best-effort disassembling the faulting
// instruction with x86asm when its bytes are available. This is a
// domain-stack addition beyond spec.md's prose, grounded on biscuit's
// declared but unused golang.org/x/arch dependency.
func (s *Subsystem) killDiagnostic(reason string, f Fault) Kill {
	k := Kill{Reason: reason}
	if len(f.Instr) > 0 {
		if inst, err := x86asm.Decode(f.Instr, 32); err == nil {
			k.Mnemonic = inst.Op.String()
		}
	}
	return k
}

func (k Kill) String() string {
	if k.Mnemonic == "" {
		return k.Reason
	}
	return fmt.Sprintf("%s (at %s)", k.Reason, k.Mnemonic)
}

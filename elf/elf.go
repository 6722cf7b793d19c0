// Package elf implements the executable loader (spec.md §4.H, component
// H): ELF32 header validation, PT_LOAD segment tiling into per-page
// supplementary entries, and the initial stack page's System-V argv
// layout. Grounded on Pintos's process.c load/load_segment/setup_stack
// (original_source/src/userprog/process.c).
package elf

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"wafer/fsdev"
	"wafer/mem"
	"wafer/util"
	"wafer/vm"
)

const (
	elfMagic    = "\x7fELF"
	classELF32  = 1
	dataLSB     = 1
	emI386      = 3
	etExec      = 2
	phdrSize    = 32
	headerSize  = 52
	maxPhnum    = 1024
)

// Segment types, per spec.md §6's accepted program-header set.
const (
	ptNull    = 0
	ptLoad    = 1
	ptDynamic = 2
	ptInterp  = 3
	ptNote    = 4
	ptShlib   = 5
	ptPhdr    = 6
)

type header32 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type progHeader32 struct {
	Type   uint32
	Offset uint32
	VAddr  uint32
	PAddr  uint32
	FileSz uint32
	MemSz  uint32
	Flags  uint32
	Align  uint32
}

func readFull(f fsdev.File, off int64, buf []byte) error {
	f.Seek(off)
	n, err := f.Read(buf)
	if err != nil {
		return errors.Wrap(err, "elf: read")
	}
	if n != len(buf) {
		return errors.New("elf: short read")
	}
	return nil
}

func parseHeader(f fsdev.File) (header32, error) {
	var raw [headerSize]byte
	if err := readFull(f, 0, raw[:]); err != nil {
		return header32{}, err
	}
	if string(raw[:4]) != elfMagic {
		return header32{}, errors.New("elf: bad magic")
	}
	if raw[4] != classELF32 {
		return header32{}, errors.New("elf: not a 32-bit object")
	}
	if raw[5] != dataLSB {
		return header32{}, errors.New("elf: not little-endian")
	}
	var h header32
	copy(h.Ident[:], raw[:16])
	le := binary.LittleEndian
	h.Type = le.Uint16(raw[16:18])
	h.Machine = le.Uint16(raw[18:20])
	h.Version = le.Uint32(raw[20:24])
	h.Entry = le.Uint32(raw[24:28])
	h.Phoff = le.Uint32(raw[28:32])
	h.Shoff = le.Uint32(raw[32:36])
	h.Flags = le.Uint32(raw[36:40])
	h.Ehsize = le.Uint16(raw[40:42])
	h.Phentsize = le.Uint16(raw[42:44])
	h.Phnum = le.Uint16(raw[44:46])
	h.Shentsize = le.Uint16(raw[46:48])
	h.Shnum = le.Uint16(raw[48:50])
	h.Shstrndx = le.Uint16(raw[50:52])

	if h.Machine != emI386 {
		return header32{}, errors.New("elf: wrong machine")
	}
	if h.Type != etExec {
		return header32{}, errors.New("elf: not an executable")
	}
	if h.Version != 1 {
		return header32{}, errors.New("elf: bad version")
	}
	if h.Phentsize != phdrSize {
		return header32{}, errors.New("elf: bad program header size")
	}
	if h.Phnum > maxPhnum {
		return header32{}, errors.New("elf: too many program headers")
	}
	return h, nil
}

func parsePhdr(f fsdev.File, h header32, i int) (progHeader32, error) {
	var raw [phdrSize]byte
	off := int64(h.Phoff) + int64(i)*phdrSize
	if err := readFull(f, off, raw[:]); err != nil {
		return progHeader32{}, err
	}
	le := binary.LittleEndian
	return progHeader32{
		Type:   le.Uint32(raw[0:4]),
		Offset: le.Uint32(raw[4:8]),
		VAddr:  le.Uint32(raw[8:12]),
		PAddr:  le.Uint32(raw[12:16]),
		FileSz: le.Uint32(raw[16:20]),
		MemSz:  le.Uint32(raw[20:24]),
		Flags:  le.Uint32(raw[24:28]),
		Align:  le.Uint32(raw[28:32]),
	}, nil
}

// Loaded carries the result of Load: the entry point and initial stack
// pointer the process should resume execution at (spec.md §4.H).
type Loaded struct {
	Entry uintptr
	ESP   uintptr
}

// Load validates bin's ELF32 header and program headers, appends one
// vm.SuppEntry per page of every PT_LOAD segment to as.Supp (without
// eagerly reading any segment bytes), installs the initial stack page
// eagerly with the System-V argv layout, and returns the entry point and
// stack pointer. bin must remain open and write-denied for as's lifetime
// (spec.md §3, enforced by the caller, proc.Spawn).
func Load(bin fsdev.File, argv []string, subsys *vm.Subsystem, as *vm.AddrSpace) (Loaded, error) {
	h, err := parseHeader(bin)
	if err != nil {
		return Loaded{}, err
	}

	for i := 0; i < int(h.Phnum); i++ {
		ph, err := parsePhdr(bin, h, i)
		if err != nil {
			return Loaded{}, err
		}
		switch ph.Type {
		case ptNull, ptNote, ptPhdr:
			continue
		case ptDynamic, ptInterp, ptShlib:
			return Loaded{}, errors.New("elf: unsupported dynamic-linking segment")
		case ptLoad:
			if err := tileSegment(as, bin, ph); err != nil {
				return Loaded{}, err
			}
		}
	}

	esp, err := setupStack(subsys, as, argv)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{Entry: uintptr(h.Entry), ESP: esp}, nil
}

// tileSegment emits one vm.SuppEntry per page of a PT_LOAD segment,
// rejecting segments that overlap page zero, wrap, or reach into the
// kernel half of the address space. Each entry carries bin as its
// FileHandle so the fault resolver's lazy-load step can read the segment's
// bytes back in on first touch.
func tileSegment(as *vm.AddrSpace, bin fsdev.File, ph progHeader32) error {
	if ph.VAddr < uint32(mem.PageSize) {
		return errors.New("elf: segment maps page zero")
	}
	if uint64(ph.VAddr)+uint64(ph.MemSz) < uint64(ph.VAddr) {
		return errors.New("elf: segment wraps")
	}
	if uint64(ph.VAddr)+uint64(ph.MemSz) > uint64(vm.UserTop) {
		return errors.New("elf: segment exceeds user address space")
	}
	if ph.FileSz > ph.MemSz {
		return errors.New("elf: file size exceeds memory size")
	}

	vpage := uintptr(util.Rounddown(uint(ph.VAddr), uint(mem.PageSize)))
	pageOff := int64(ph.VAddr) - int64(vpage)
	fileOff := int64(ph.Offset)
	remainingFile := int64(ph.FileSz)
	remainingMem := int64(ph.MemSz) + pageOff

	for remainingMem > 0 {
		readBytes := remainingFile
		if readBytes > int64(mem.PageSize)-pageOff {
			readBytes = int64(mem.PageSize) - pageOff
		}
		if readBytes < 0 {
			readBytes = 0
		}
		zeroBytes := int64(mem.PageSize) - readBytes
		as.Supp.Record(vm.SuppEntry{
			VPage:      vpage,
			Source:     vm.SourceExecutable,
			FileHandle: bin,
			Offset:     fileOff,
			ReadBytes:  int(readBytes),
			ZeroBytes:  int(zeroBytes),
			Writable:   ph.Flags&2 != 0, // PF_W
		})
		vpage += uintptr(mem.PageSize)
		fileOff += readBytes
		remainingFile -= readBytes
		remainingMem -= int64(mem.PageSize) - pageOff
		pageOff = 0
	}
	return nil
}

// setupStack eagerly allocates and installs the initial stack page at
// UserTop-PageSize, writing the System-V argv block directly into it
// (spec.md §4.H: constructed, not lazily faulted).
func setupStack(subsys *vm.Subsystem, as *vm.AddrSpace, argv []string) (uintptr, error) {
	vpage := vm.UserTop - uintptr(mem.PageSize)
	frame, ok := subsys.Pool.Allocate(true)
	if !ok {
		if _, ok = subsys.Evict(as.Owner); !ok {
			return 0, errors.New("elf: out of frames for initial stack")
		}
		frame, ok = subsys.Pool.Allocate(true)
		if !ok {
			return 0, errors.New("elf: out of frames for initial stack")
		}
	}
	buf := subsys.Pool.Bytes(frame)
	sp := len(buf)

	addrs := make([]uintptr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		sp -= len(s) + 1
		copy(buf[sp:], s)
		buf[sp+len(s)] = 0
		addrs[i] = vpage + uintptr(sp)
	}

	sp = int(util.Rounddown(uint(sp), 4))

	sp -= 4 // null sentinel
	binary.LittleEndian.PutUint32(buf[sp:], 0)

	for i := len(argv) - 1; i >= 0; i-- {
		sp -= 4
		binary.LittleEndian.PutUint32(buf[sp:], uint32(addrs[i]))
	}
	argvBase := vpage + uintptr(sp)

	sp -= 4
	binary.LittleEndian.PutUint32(buf[sp:], uint32(argvBase))

	sp -= 4
	binary.LittleEndian.PutUint32(buf[sp:], uint32(len(argv)))

	sp -= 4 // fake return address
	binary.LittleEndian.PutUint32(buf[sp:], 0)

	as.Dir.Install(vpage, frame, true)
	subsys.Lock()
	subsys.Frames.Install(vm.FrameEntry{Frame: frame, VPage: vpage, Owner: as, Writable: true})
	subsys.Unlock()
	as.StackLimit = vpage

	return vpage + uintptr(sp), nil
}

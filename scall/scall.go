// Package scall implements the syscall dispatch table of spec.md §6: a
// thin switch over the 13 calls of the single interrupt-gate contract,
// reproduced the way Pintos's syscall.c switches on the call number
// pulled from the stack (original_source/src/userprog/syscall.c). Pulled
// out of proc to keep the dispatch switch and its argument-pointer
// validation separate from the lifecycle FSM, the way Pintos keeps
// syscall.c separate from process.c even though both touch struct thread.
package scall

import (
	"wafer/defs"
	"wafer/mem"
	"wafer/proc"
	"wafer/vm"
)

// Call numbers, per spec.md §6's table.
const (
	Halt = iota
	Exit
	Exec
	Wait
	Create
	Remove
	Open
	Filesize
	Read
	Write
	Seek
	Tell
	Close
)

const (
	minFilenameLen = 1
	maxFilenameLen = 14
)

// Dispatch routes one syscall for p, validating every pointer argument
// before it is dereferenced (spec.md §6: "non-null, below the user/
// kernel split, backed by a mapping in the caller's directory"). A
// failed validation terminates p with exit code -1, matching the
// unsafe-access kill path of the page-fault resolver.
func Dispatch(p *proc.Process, num int, args [3]uintptr) int {
	switch num {
	case Halt:
		return 0
	case Exit:
		p.Exit(int(int32(args[0])))
		return 0
	case Exec:
		cmdline, ok := readUserString(p, args[0])
		if !ok {
			p.Exit(defs.ExitKilled)
			return -1
		}
		id, err := p.Spawn(nextPID(p), cmdline)
		if err != nil {
			return -1
		}
		return int(id)
	case Wait:
		code, err := p.Wait(defs.PID(int(args[0])))
		if err != nil {
			return -1
		}
		return code
	case Create:
		name, ok := checkFilename(p, args[0])
		if !ok {
			return 0
		}
		if err := p.FS.Create(name, int64(args[1])); err != nil {
			return 0
		}
		return 1
	case Remove:
		name, ok := checkFilename(p, args[0])
		if !ok {
			return 0
		}
		if err := p.FS.Remove(name); err != nil {
			return 0
		}
		return 1
	case Open:
		name, ok := checkFilename(p, args[0])
		if !ok {
			return -1
		}
		f, err := p.FS.Open(name)
		if err != nil {
			return -1
		}
		return p.Files.Add(f)
	case Filesize:
		f, ok := p.Files.Get(int(args[0]))
		if !ok {
			return -1
		}
		return int(f.Length())
	case Read:
		return doRead(p, int(args[0]), args[1], int(args[2]))
	case Write:
		return doWrite(p, int(args[0]), args[1], int(args[2]))
	case Seek:
		f, ok := p.Files.Get(int(args[0]))
		if !ok {
			return 0
		}
		f.Seek(int64(args[1]))
		return 0
	case Tell:
		f, ok := p.Files.Get(int(args[0]))
		if !ok {
			return -1
		}
		return int(f.Tell())
	case Close:
		if int(args[0]) <= 1 {
			return 0
		}
		p.Files.Close(int(args[0]))
		return 0
	default:
		p.Exit(defs.ExitKilled)
		return -1
	}
}

// nextPID issues child ids for Exec from pidCounter, one package-level
// counter shared by every process; it is not backed by a process table.
var pidCounter = defs.PID(1)

func nextPID(_ *proc.Process) func() defs.PID {
	return func() defs.PID {
		pidCounter++
		return pidCounter
	}
}

// checkFilename validates and reads a filename argument, enforcing
// spec.md §6's [1,14] length bound.
func checkFilename(p *proc.Process, addr uintptr) (string, bool) {
	s, ok := readUserString(p, addr)
	if !ok {
		p.Exit(defs.ExitKilled)
		return "", false
	}
	if len(s) < minFilenameLen || len(s) > maxFilenameLen {
		return "", false
	}
	return s, true
}

func doRead(p *proc.Process, fd int, bufAddr uintptr, size int) int {
	if fd == 0 {
		n := 0
		buf := make([]byte, size)
		for n < size {
			b, ok := p.Stdin.ReadByte()
			if !ok {
				break
			}
			buf[n] = b
			n++
		}
		if !writeUser(p, bufAddr, buf[:n]) {
			p.Exit(defs.ExitKilled)
			return -1
		}
		return n
	}
	f, ok := p.Files.Get(fd)
	if !ok {
		return -1
	}
	buf := make([]byte, size)
	n, err := f.Read(buf)
	if err != nil {
		return -1
	}
	if !writeUser(p, bufAddr, buf[:n]) {
		p.Exit(defs.ExitKilled)
		return -1
	}
	return n
}

func doWrite(p *proc.Process, fd int, bufAddr uintptr, size int) int {
	buf, ok := readUserBuf(p, bufAddr, size)
	if !ok {
		p.Exit(defs.ExitKilled)
		return -1
	}
	if fd == 1 {
		n, err := p.Stdout.Write(buf)
		if err != nil {
			return -1
		}
		return n
	}
	f, ok := p.Files.Get(fd)
	if !ok {
		return -1
	}
	n, err := f.Write(buf)
	if err != nil {
		return -1
	}
	return n
}

// validate reports whether addr is a pointer scall may dereference: in
// user range and backed by a currently-installed mapping (not a
// fault-triggering lookup, matching Pintos check_pointer's use of
// pagedir_get_page rather than letting the access fault).
func validate(p *proc.Process, addr uintptr) (frame mem.Frame, pageOff int, ok bool) {
	if addr == 0 || addr >= vm.UserTop {
		return 0, 0, false
	}
	vpage := addr &^ uintptr(mem.PageSize-1)
	f, _, present := p.Space.Dir.Lookup(vpage)
	if !present {
		return 0, 0, false
	}
	return f, int(addr - vpage), true
}

func readUserString(p *proc.Process, addr uintptr) (string, bool) {
	var out []byte
	cur := addr
	for {
		frame, off, ok := validate(p, cur)
		if !ok {
			return "", false
		}
		page := p.Subsys.Pool.Bytes(frame)
		for off < mem.PageSize {
			b := page[off]
			if b == 0 {
				return string(out), true
			}
			out = append(out, b)
			off++
			cur++
		}
	}
}

func readUserBuf(p *proc.Process, addr uintptr, size int) ([]byte, bool) {
	out := make([]byte, 0, size)
	cur := addr
	for len(out) < size {
		frame, off, ok := validate(p, cur)
		if !ok {
			return nil, false
		}
		page := p.Subsys.Pool.Bytes(frame)
		n := mem.PageSize - off
		if n > size-len(out) {
			n = size - len(out)
		}
		p.Space.Touch(cur&^uintptr(mem.PageSize-1), false)
		out = append(out, page[off:off+n]...)
		cur += uintptr(n)
	}
	return out, true
}

func writeUser(p *proc.Process, addr uintptr, data []byte) bool {
	cur := addr
	written := 0
	for written < len(data) {
		frame, off, ok := validate(p, cur)
		if !ok {
			return false
		}
		page := p.Subsys.Pool.Bytes(frame)
		n := mem.PageSize - off
		if n > len(data)-written {
			n = len(data) - written
		}
		copy(page[off:off+n], data[written:written+n])
		p.Space.Touch(cur&^uintptr(mem.PageSize-1), true)
		cur += uintptr(n)
		written += n
	}
	return true
}

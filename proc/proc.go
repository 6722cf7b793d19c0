// Package proc implements the process lifecycle FSM and parent/child
// rendezvous protocol of spec.md §4.I, component I. Grounded on Pintos's
// process_execute/process_wait/user_process_exit
// (original_source/src/userprog/process.c, syscall.c's exit handling).
package proc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"wafer/console"
	"wafer/defs"
	"wafer/elf"
	"wafer/fsdev"
	"wafer/vm"
)

// PID is a process identifier, aliasing defs.PID so the whole module
// shares one identifier type without proc importing a type from a
// package that would import proc back.
type PID = defs.PID

// ChildState is one of the four states of spec.md §4.I's child FSM.
type ChildState int

const (
	Initializing ChildState = iota
	Started
	Exited
	Failed
)

func (s ChildState) String() string {
	switch s {
	case Initializing:
		return "INITIALIZING"
	case Started:
		return "STARTED"
	case Exited:
		return "EXITED"
	case Failed:
		return "FAILED"
	default:
		return "?"
	}
}

// ChildStatus is the status block a parent owns for one child, surviving
// the child itself, per spec.md §3. Its own mutex/cond pair is the
// "parent's status lock" of spec.md §4.I, scoped to one child rather
// than shared across all of a parent's children — the signal is still
// sent under the same lock that guards the state field, which is the
// invariant spec.md actually requires (see DESIGN.md Open Questions).
type ChildStatus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ID     PID
	State  ChildState
	ExitCode int
	Parent *Process // nulled when the parent exits first
	reaped bool

	// Proc is the child's own Process, the kernel's equivalent of a
	// pid-to-process-table lookup. Set once, before the child leaves
	// INITIALIZING, under the same lock that publishes the state change.
	Proc *Process
}

func newChildStatus(id PID, parent *Process) *ChildStatus {
	cs := &ChildStatus{ID: id, State: Initializing, Parent: parent}
	cs.cond = sync.NewCond(&cs.mu)
	return cs
}

// free marks the block reaped, panicking if it already was — the
// runtime assertion standing in for spec.md's "freed exactly once"
// invariant, since Go has no explicit free to double-call.
func (cs *ChildStatus) free() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.reaped {
		panic("proc: child status block freed twice")
	}
	cs.reaped = true
}

// FileTable is a process's open-file descriptor table, first free
// descriptor >= 2 issued on open (fd 0/1 are console stdin/stdout,
// handled separately by scall), per spec.md §3.
type FileTable struct {
	mu    sync.Mutex
	files map[int]fsdev.File
	next  int
}

// NewFileTable returns an empty file table with descriptors starting at 2.
func NewFileTable() *FileTable {
	return &FileTable{files: make(map[int]fsdev.File), next: 2}
}

// Add installs f under a freshly issued descriptor.
func (t *FileTable) Add(f fsdev.File) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.files[fd] = f
	return fd
}

// Get returns the file at fd, if open.
func (t *FileTable) Get(fd int) (fsdev.File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	return f, ok
}

// Close closes and removes fd, reporting whether it was open.
func (t *FileTable) Close(fd int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	if !ok {
		return false
	}
	f.Close()
	delete(t.files, fd)
	return true
}

// CloseAll closes every open descriptor, called on process exit.
func (t *FileTable) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd, f := range t.files {
		f.Close()
		delete(t.files, fd)
	}
}

// Process is the per-user-process descriptor of spec.md §3.
type Process struct {
	ID     PID
	Name   string
	Trace  uuid.UUID
	Space  *vm.AddrSpace
	Files  *FileTable
	Binary fsdev.File
	Subsys *vm.Subsystem
	FS     fsdev.FS
	Stdout *console.Writer
	Stdin  *console.Reader

	Parent *Process
	// Status is this process's own status block in its parent's
	// Children map, or nil for the init process that has no parent.
	Status *ChildStatus

	childrenMu sync.Mutex
	Children   map[PID]*ChildStatus

	// EIP/ESP hold the entry point and initial stack pointer the loader
	// produced, for a caller to resume simulated execution at.
	EIP, ESP uintptr
}

func newProcess(id PID, parent *Process, subsys *vm.Subsystem) *Process {
	return &Process{
		ID:       id,
		Trace:    uuid.New(),
		Space:    vm.NewAddrSpace(id),
		Files:    NewFileTable(),
		Subsys:   subsys,
		Parent:   parent,
		Children: make(map[PID]*ChildStatus),
	}
}

// NewInit returns the root process with no parent, for callers (tests,
// a boot sequence) that need a process to spawn children from. fs and
// console back the syscalls the init process (and, transitively, every
// process it spawns) issues.
func NewInit(id PID, subsys *vm.Subsystem, fs fsdev.FS, stdout *console.Writer, stdin *console.Reader) *Process {
	p := newProcess(id, nil, subsys)
	p.FS, p.Stdout, p.Stdin = fs, stdout, stdin
	return p
}

// Spawn implements spec.md §4.I's spawn: tokenizes cmdline, creates a
// child in state INITIALIZING, runs its startup concurrently, and waits
// on the child's own status condition variable until it leaves
// INITIALIZING. Returns the child id on STARTED, an error on FAILED.
func (parent *Process) Spawn(nextID func() PID, cmdline string) (PID, error) {
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return 0, fmt.Errorf("proc: empty command line")
	}
	id := nextID()
	child := newProcess(id, parent, parent.Subsys)
	child.Name = argv[0]
	child.FS, child.Stdout, child.Stdin = parent.FS, parent.Stdout, parent.Stdin
	cs := newChildStatus(id, parent)
	child.Status = cs

	parent.childrenMu.Lock()
	parent.Children[id] = cs
	parent.childrenMu.Unlock()

	cs.mu.Lock()
	go child.start(argv, cs)
	for cs.State == Initializing {
		cs.cond.Wait()
	}
	state := cs.State
	cs.mu.Unlock()

	if state == Failed {
		return 0, fmt.Errorf("proc: exec %q failed to load", cmdline)
	}
	return id, nil
}

// start runs the child's load-and-transition half of the spawn protocol,
// per spec.md §4.I's "child startup".
func (child *Process) start(argv []string, cs *ChildStatus) {
	bin, err := child.FS.Open(argv[0])
	var loaded elf.Loaded
	if err == nil {
		loaded, err = elf.Load(bin, argv, child.Subsys, child.Space)
	}
	ok := err == nil

	cs.mu.Lock()
	cs.Proc = child
	if ok {
		cs.State = Started
		child.Binary = bin
		child.Binary.DenyWrite()
		child.EIP = loaded.Entry
		child.ESP = loaded.ESP
	} else {
		cs.State = Failed
	}
	cs.cond.Broadcast()
	cs.mu.Unlock()

	if !ok && bin != nil {
		bin.Close()
	}
}

// Wait implements spec.md §4.I's wait(child_id).
func (parent *Process) Wait(id PID) (int, error) {
	parent.childrenMu.Lock()
	cs, ok := parent.Children[id]
	parent.childrenMu.Unlock()
	if !ok {
		return -1, fmt.Errorf("proc: %d is not a waitable child", id)
	}

	cs.mu.Lock()
	if cs.reaped {
		cs.mu.Unlock()
		return -1, fmt.Errorf("proc: child %d already reaped", id)
	}
	for cs.State == Started || cs.State == Initializing {
		cs.cond.Wait()
	}
	code := cs.ExitCode
	cs.mu.Unlock()
	cs.free()

	parent.childrenMu.Lock()
	delete(parent.Children, id)
	parent.childrenMu.Unlock()

	return code, nil
}

// HandleFault resolves a page fault against p's address space. If
// resolution fails, p is terminated with exit code -1 per spec.md §4.G's
// "terminate the process with exit code -1" and §7's propagation policy
// (user-triggered errors never reach the kernel).
func (p *Process) HandleFault(f vm.Fault) (killed bool, diagnostic string) {
	k := p.Subsys.ResolveFault(p.Space, f)
	if k.Reason == "" {
		return false, ""
	}
	p.Exit(defs.ExitKilled)
	return true, k.String()
}

// Exit implements spec.md §4.I's user exit(code): prints the exit line,
// publishes the final state to the parent (or frees its own block if
// orphaned), reparents or frees every child of its own, and closes its
// files and binary.
func (p *Process) Exit(code int) {
	fmt.Printf("%s: exit(%d)\n", p.Name, code)

	if cs := p.Status; cs != nil {
		cs.mu.Lock()
		orphaned := cs.Parent == nil
		cs.ExitCode = code
		cs.State = Exited
		cs.cond.Broadcast()
		cs.mu.Unlock()
		if orphaned {
			cs.free()
		}
	}

	p.childrenMu.Lock()
	kids := lo.Values(p.Children)
	p.Children = make(map[PID]*ChildStatus)
	p.childrenMu.Unlock()

	for _, cs := range kids {
		// Read the state and null the back-pointer under one lock hold, so
		// a child exiting concurrently either sees Parent == nil and frees
		// its own block, or has already published Exited and is freed here.
		cs.mu.Lock()
		done := cs.State == Exited || cs.State == Failed
		if !done {
			cs.Parent = nil
		}
		cs.mu.Unlock()
		if done {
			cs.free()
		}
	}

	p.Files.CloseAll()
	if p.Binary != nil {
		p.Binary.AllowWrite()
		p.Binary.Close()
	}
	p.Subsys.Teardown(p.Space)
}

package proc

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wafer/block"
	"wafer/console"
	"wafer/defs"
	"wafer/fsdev"
	"wafer/mem"
	"wafer/vm"
)

const (
	elfMagic   = "\x7fELF"
	headerSize = 52
	phdrSize   = 32
)

// buildMinimalELF assembles an ELF32/ET_EXEC image for the given e_machine
// with a single one-byte PT_LOAD segment. With machine 3 (EM_386) it is
// enough for proc.Spawn to succeed
// without ever needing to execute an instruction (the CPU/interrupt
// vector is out of scope; proc only needs the loader to succeed).
func buildMinimalELF(t *testing.T, machine uint16) []byte {
	t.Helper()
	const vaddr = 0x08048000
	phoff := headerSize
	segOff := phoff + phdrSize
	buf := make([]byte, segOff+1)
	copy(buf[0:4], elfMagic)
	buf[4] = 1 // ELFCLASS32
	buf[5] = 1 // ELFDATA2LSB

	le := binary.LittleEndian
	le.PutUint16(buf[16:18], 2) // ET_EXEC
	le.PutUint16(buf[18:20], machine)
	le.PutUint32(buf[20:24], 1)
	le.PutUint32(buf[24:28], vaddr)
	le.PutUint32(buf[28:32], uint32(phoff))
	le.PutUint16(buf[42:44], phdrSize)
	le.PutUint16(buf[44:46], 1)

	ph := buf[phoff:]
	le.PutUint32(ph[0:4], 1) // PT_LOAD
	le.PutUint32(ph[4:8], uint32(segOff))
	le.PutUint32(ph[8:12], vaddr)
	le.PutUint32(ph[12:16], vaddr)
	le.PutUint32(ph[16:20], 1)
	le.PutUint32(ph[20:24], 4096)
	le.PutUint32(ph[24:28], 5)
	buf[segOff] = 0x90
	return buf
}

func newTestHarness(t *testing.T) (*vm.Subsystem, *fsdev.MemFS, *console.Writer, *console.Reader) {
	t.Helper()
	dev := block.NewMemDevice(64*(mem.PageSize/512), 512)
	subsys, err := vm.NewSubsystem(64, dev, vm.EvictConfig{})
	require.NoError(t, err)
	fs := fsdev.NewMemFS()
	cdev := &console.MemDevice{}
	return subsys, fs, console.NewWriter(cdev), console.NewReader(cdev)
}

func idAllocator() func() PID {
	var mu sync.Mutex
	next := defs.PID(2)
	return func() PID {
		mu.Lock()
		defer mu.Unlock()
		next++
		return next
	}
}

func TestSpawnWaitExitCode(t *testing.T) {
	subsys, fs, out, in := newTestHarness(t)
	fs.Seed("good", buildMinimalELF(t, 3))
	init := NewInit(1, subsys, fs, out, in)

	alloc := idAllocator()
	id, err := init.Spawn(alloc, "good arg1")
	require.NoError(t, err)

	// Simulate the child's own execution reaching exit(7).
	init.childrenMu.Lock()
	cs := init.Children[id]
	init.childrenMu.Unlock()
	cs.Proc.Exit(7)

	code, err := init.Wait(id)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestSpawnBadELFFailsImmediately(t *testing.T) {
	subsys, fs, out, in := newTestHarness(t)
	fs.Seed("badelf", buildMinimalELF(t, 0x28)) // wrong machine
	init := NewInit(1, subsys, fs, out, in)

	alloc := idAllocator()
	_, err := init.Spawn(alloc, "badelf")
	assert.Error(t, err)
}

func TestDoubleWaitSecondReturnsError(t *testing.T) {
	subsys, fs, out, in := newTestHarness(t)
	fs.Seed("good", buildMinimalELF(t, 3))
	init := NewInit(1, subsys, fs, out, in)

	alloc := idAllocator()
	id, err := init.Spawn(alloc, "good")
	require.NoError(t, err)
	init.childrenMu.Lock()
	cs := init.Children[id]
	init.childrenMu.Unlock()
	cs.Proc.Exit(7)

	code, err := init.Wait(id)
	require.NoError(t, err)
	assert.Equal(t, 7, code)

	_, err = init.Wait(id)
	assert.Error(t, err)
}

func TestParentExitBeforeChildFreesOwnBlock(t *testing.T) {
	subsys, fs, out, in := newTestHarness(t)
	fs.Seed("good", buildMinimalELF(t, 3))
	init := NewInit(1, subsys, fs, out, in)

	alloc := idAllocator()
	id, err := init.Spawn(alloc, "good")
	require.NoError(t, err)
	init.childrenMu.Lock()
	cs := init.Children[id]
	init.childrenMu.Unlock()
	child := cs.Proc

	init.Exit(0)
	assert.Nil(t, child.Status.Parent)

	assert.NotPanics(t, func() { child.Exit(3) })
}

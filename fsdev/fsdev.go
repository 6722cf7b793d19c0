// Package fsdev models the filesystem collaborator spec.md §1 explicitly
// keeps opaque: "the filesystem (opaque file-open/read/seek/length/close)".
// It exists so the executable loader, the swap-free round-trip tests, and
// the syscall dispatch table (create/remove/open/read/write/seek/tell/
// close) have a real, if minimal, backing store. Grounded in shape on
// Pintos's filesys_open/file_read/file_seek/file_length/file_close/
// file_deny_write (original_source/src/userprog/process.c,syscall.c),
// expressed as a Go interface the way biscuit turns file operations into
// fdops.Fdops_i.
package fsdev

import (
	"sync"

	"github.com/pkg/errors"
)

// File is an open file handle. Offsets are absolute; Seek sets the next
// Read/Write position the way Pintos's file_seek does.
type File interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Seek(pos int64)
	Tell() int64
	Length() int64
	Close()
	// DenyWrite marks the file non-writable; Write returns an error while
	// denied. Used to protect a process's own executable image for its
	// lifetime (spec.md §3,§4.I, §8 invariant).
	DenyWrite()
	AllowWrite()
}

// FS is an opaque filesystem: open, create, remove by name.
type FS interface {
	Open(name string) (File, error)
	Create(name string, initialSize int64) error
	Remove(name string) error
}

// MemFS is an in-memory FS backing tests and the absence of a real
// filesystem driver (explicitly out of scope per spec.md §1).
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// Seed installs data under name without going through Create, useful for
// placing a pre-built executable image before exec'ing it in tests.
func (fs *MemFS) Seed(name string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	fs.files[name] = cp
}

// Create adds an empty (or zero-filled) file of initialSize bytes. It
// overwrites any existing file of the same name, matching filesys_create.
func (fs *MemFS) Create(name string, initialSize int64) error {
	if initialSize < 0 {
		return errors.New("fsdev: negative initial size")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[name] = make([]byte, initialSize)
	return nil
}

// Remove deletes a file by name.
func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[name]; !ok {
		return errors.Errorf("fsdev: no such file %q", name)
	}
	delete(fs.files, name)
	return nil
}

// Open returns a handle sharing the backing bytes of the named file. Each
// Open call gets its own cursor and deny-write state, matching Pintos's
// per-open struct file.
func (fs *MemFS) Open(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, ok := fs.files[name]
	if !ok {
		return nil, errors.Errorf("fsdev: no such file %q", name)
	}
	return &memFile{fs: fs, name: name, data: data}, nil
}

type memFile struct {
	fs     *MemFS
	name   string
	data   []byte
	pos    int64
	denied bool
	closed bool
}

func (f *memFile) Read(buf []byte) (int, error) {
	if f.closed {
		return 0, errors.New("fsdev: read on closed file")
	}
	if f.pos >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(buf, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Write(buf []byte) (int, error) {
	if f.closed {
		return 0, errors.New("fsdev: write on closed file")
	}
	if f.denied {
		return 0, errors.New("fsdev: write denied")
	}
	end := f.pos + int64(len(buf))
	f.fs.mu.Lock()
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
		f.fs.files[f.name] = f.data
	}
	f.fs.mu.Unlock()
	n := copy(f.data[f.pos:end], buf)
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Seek(pos int64) { f.pos = pos }
func (f *memFile) Tell() int64    { return f.pos }
func (f *memFile) Length() int64  { return int64(len(f.data)) }
func (f *memFile) Close()         { f.closed = true }
func (f *memFile) DenyWrite()     { f.denied = true }
func (f *memFile) AllowWrite()    { f.denied = false }

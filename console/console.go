// Package console models the fd 0/fd 1 devices of spec.md §6: stdin via
// keyboard polling, stdout as chunked 256-byte writes. Grounded on
// gopher-os's device/tty and device/video/console packages, which wrap a
// backing store behind a small Write/ReadByte device interface rather than
// touching video memory directly from call sites.
package console

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// WriteChunkSize is the number of bytes the kernel hands to the console
// device per call, per spec.md §6 ("fd 1 ... chunked 256-byte writes").
const WriteChunkSize = 256

// Device is the backing store for the console: a real teaching kernel
// drives VGA text memory or a serial port; tests and this module drive an
// in-memory buffer.
type Device interface {
	io.Writer
	// ReadByte returns the next polled input byte. ok is false if no byte
	// is currently available (spec.md describes stdin as "keyboard via
	// polling").
	ReadByte() (b byte, ok bool)
}

// MemDevice is an in-memory Device backing tests and the absence of a real
// keyboard/VGA driver.
type MemDevice struct {
	Out   bytes.Buffer
	input []byte
}

// Feed queues bytes to be returned by subsequent ReadByte calls, standing
// in for keystrokes arriving at the keyboard controller.
func (d *MemDevice) Feed(b []byte) { d.input = append(d.input, b...) }

func (d *MemDevice) Write(p []byte) (int, error) { return d.Out.Write(p) }

func (d *MemDevice) ReadByte() (byte, bool) {
	if len(d.input) == 0 {
		return 0, false
	}
	b := d.input[0]
	d.input = d.input[1:]
	return b, true
}

// Writer chunks writes to WriteChunkSize bytes and normalizes them through
// CP437, the real VGA text-mode code page, before handing them to dev — a
// byte outside 7-bit ASCII degrades the way a real text console would
// instead of corrupting whatever encoding the caller used.
type Writer struct {
	dev Device
	enc *charmap.Charmap
}

// NewWriter wraps dev with CP437 chunked-write semantics.
func NewWriter(dev Device) *Writer {
	return &Writer{dev: dev, enc: charmap.CodePage437}
}

// WriteString writes s to the console, WriteChunkSize bytes at a time, and
// returns the total number of bytes accepted.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Write implements io.Writer, chunking buf into WriteChunkSize pieces.
func (w *Writer) Write(buf []byte) (int, error) {
	total := 0
	for len(buf) > 0 {
		n := len(buf)
		if n > WriteChunkSize {
			n = WriteChunkSize
		}
		chunk := buf[:n]
		encoded, err := w.enc.NewEncoder().Bytes(chunk)
		if err != nil {
			// Not every byte sequence round-trips through CP437; fall
			// back to the raw bytes rather than dropping output.
			encoded = chunk
		}
		if _, err := w.dev.Write(encoded); err != nil {
			return total, err
		}
		total += n
		buf = buf[n:]
	}
	return total, nil
}

// Reader polls dev for stdin bytes.
type Reader struct {
	dev Device
}

// NewReader wraps dev for fd 0 reads.
func NewReader(dev Device) *Reader { return &Reader{dev: dev} }

// ReadByte polls once for the next input byte. It does not block: if no
// byte is queued it returns ok=false at once. In this simulated kernel
// "polling" means a loop the caller drives via repeated calls; there is
// no real interrupt to wait on.
func (r *Reader) ReadByte() (byte, bool) {
	return r.dev.ReadByte()
}

package vm

import (
	"testing"

	"wafer/block"
	"wafer/defs"
	"wafer/mem"
)

func newTestSubsystem(t *testing.T, frames int) *Subsystem {
	t.Helper()
	sectorsPerPage := mem.PageSize / 512
	dev := block.NewMemDevice(frames*4*sectorsPerPage, 512)
	s, err := NewSubsystem(frames, dev, EvictConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestSpace(pid defs.PID) *AddrSpace {
	return NewAddrSpace(pid)
}

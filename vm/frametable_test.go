package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wafer/defs"
	"wafer/mem"
)

func TestFrameTableInstallRemove(t *testing.T) {
	var ft FrameTable
	as := newTestSpace(defs.PID(1))
	ft.Install(FrameEntry{Frame: 0, VPage: 0x1000, Owner: as, Writable: true})
	ft.Install(FrameEntry{Frame: 1, VPage: 0x2000, Owner: as, Writable: false})
	assert.Equal(t, 2, ft.Len())

	ft.RemoveFrame(mem.Frame(0))
	assert.Equal(t, 1, ft.Len())
	assert.Equal(t, mem.Frame(1), ft.At(0).Frame)
}

func TestFrameTableRemoveAtSwapsWithLast(t *testing.T) {
	var ft FrameTable
	as := newTestSpace(defs.PID(1))
	ft.Install(FrameEntry{Frame: 0, Owner: as})
	ft.Install(FrameEntry{Frame: 1, Owner: as})
	ft.Install(FrameEntry{Frame: 2, Owner: as})

	ft.RemoveAt(0)
	assert.Equal(t, 2, ft.Len())
	assert.Equal(t, mem.Frame(2), ft.At(0).Frame)
}

package mmu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wafer/mem"
)

func TestInstallLookupClear(t *testing.T) {
	d := NewSoftware()
	_, _, present := d.Lookup(0x1000)
	assert.False(t, present)

	d.Install(0x1000, mem.Frame(3), true)
	f, w, present := d.Lookup(0x1000)
	assert.True(t, present)
	assert.True(t, w)
	assert.Equal(t, mem.Frame(3), f)

	d.Clear(0x1000)
	_, _, present = d.Lookup(0x1000)
	assert.False(t, present)
}

func TestAccessedAndDirtyBits(t *testing.T) {
	d := NewSoftware()
	d.Install(0x2000, mem.Frame(1), true)

	assert.False(t, d.Accessed(0x2000))
	d.SetAccessed(0x2000, true)
	assert.True(t, d.Accessed(0x2000))

	assert.False(t, d.Dirty(0x2000))
	d.SetDirty(0x2000, true)
	assert.True(t, d.Dirty(0x2000))

	// Re-installing replaces the entry, clearing both bits, matching a
	// fresh PTE_P load.
	d.Install(0x2000, mem.Frame(2), true)
	assert.False(t, d.Accessed(0x2000))
	assert.False(t, d.Dirty(0x2000))
}

func TestMappedLists(t *testing.T) {
	d := NewSoftware()
	d.Install(0x1000, mem.Frame(0), false)
	d.Install(0x2000, mem.Frame(1), false)
	assert.ElementsMatch(t, []uintptr{0x1000, 0x2000}, d.Mapped())
}

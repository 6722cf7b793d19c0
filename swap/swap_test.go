package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wafer/block"
	"wafer/mem"
)

func newTestTable(t *testing.T, slots int) *Table {
	t.Helper()
	dev := block.NewMemDevice(slots*(mem.PageSize/512), 512)
	var tbl Table
	require.NoError(t, tbl.Init(dev))
	require.Equal(t, slots, tbl.Len())
	return &tbl
}

func TestReserveFindReleaseAndReuse(t *testing.T) {
	tbl := newTestTable(t, 4)
	idx, ok := tbl.Reserve(0x1000, 7, true)
	require.True(t, ok)

	_, found := tbl.Find(0x1000, 7)
	assert.True(t, found)

	tbl.Release(0x1000, 7)
	_, found = tbl.Find(0x1000, 7)
	assert.False(t, found)

	// slot is reusable after release
	idx2, ok := tbl.Reserve(0x2000, 7, false)
	require.True(t, ok)
	assert.Equal(t, idx, idx2)
}

func TestReserveExhaustion(t *testing.T) {
	tbl := newTestTable(t, 1)
	_, ok := tbl.Reserve(0x1000, 1, true)
	require.True(t, ok)
	_, ok = tbl.Reserve(0x2000, 1, true)
	assert.False(t, ok)
}

func TestWriteReadRoundTrip(t *testing.T) {
	tbl := newTestTable(t, 2)
	idx, ok := tbl.Reserve(0x1000, 1, true)
	require.True(t, ok)

	page := make([]byte, mem.PageSize)
	for i := range page {
		page[i] = byte(i)
	}
	require.NoError(t, tbl.Write(idx, page))

	got := make([]byte, mem.PageSize)
	require.NoError(t, tbl.Read(idx, got))
	assert.Equal(t, page, got)
}

func TestReleaseOwnerClearsAllOfItsSlots(t *testing.T) {
	tbl := newTestTable(t, 3)
	tbl.Reserve(0x1000, 9, true)
	tbl.Reserve(0x2000, 9, true)
	tbl.Reserve(0x3000, 5, true)

	tbl.ReleaseOwner(9)

	_, found := tbl.Find(0x1000, 9)
	assert.False(t, found)
	_, found = tbl.Find(0x2000, 9)
	assert.False(t, found)
	_, found = tbl.Find(0x3000, 5)
	assert.True(t, found, "other owners' slots must survive")
}

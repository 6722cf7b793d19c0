package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocateExhaustsAndFrees(t *testing.T) {
	p := NewPool(2)
	assert.Equal(t, 2, p.Avail())

	f0, ok := p.Allocate(false)
	require.True(t, ok)
	f1, ok := p.Allocate(false)
	require.True(t, ok)
	assert.NotEqual(t, f0, f1)
	assert.Equal(t, 0, p.Avail())

	_, ok = p.Allocate(false)
	assert.False(t, ok, "pool must report exhaustion rather than evict itself")

	p.Free(f0)
	assert.Equal(t, 1, p.Avail())
	f2, ok := p.Allocate(false)
	require.True(t, ok)
	assert.Equal(t, f0, f2, "freed frame should be reused")
}

func TestAllocateZeroed(t *testing.T) {
	p := NewPool(1)
	f, ok := p.Allocate(false)
	require.True(t, ok)
	b := p.Bytes(f)
	for i := range b {
		b[i] = 0xff
	}
	p.Free(f)

	f, ok = p.Allocate(true)
	require.True(t, ok)
	for _, v := range p.Bytes(f) {
		assert.Zero(t, v)
	}
}

func TestBytesViewIsPageSized(t *testing.T) {
	p := NewPool(3)
	f, _ := p.Allocate(false)
	assert.Len(t, p.Bytes(f), PageSize)
}

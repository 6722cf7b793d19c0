package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteChunking(t *testing.T) {
	dev := &MemDevice{}
	w := NewWriter(dev)
	msg := make([]byte, WriteChunkSize*2+10)
	for i := range msg {
		msg[i] = 'a'
	}
	n, err := w.Write(msg)
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, len(msg), dev.Out.Len())
}

func TestReaderPollsFedBytes(t *testing.T) {
	dev := &MemDevice{}
	dev.Feed([]byte("hi"))
	r := NewReader(dev)
	b, ok := r.ReadByte()
	require.True(t, ok)
	assert.Equal(t, byte('h'), b)
	b, ok = r.ReadByte()
	require.True(t, ok)
	assert.Equal(t, byte('i'), b)
	_, ok = r.ReadByte()
	assert.False(t, ok)
}

func TestWriteStringASCIIRoundTrips(t *testing.T) {
	dev := &MemDevice{}
	w := NewWriter(dev)
	_, err := w.WriteString("hello world\n")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", dev.Out.String())
}

package fsdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateOpenWriteCloseOpenReadRoundTrip exercises spec.md §8's
// round-trip law: create(f), open(f), write(fd,b), close(fd), open(f),
// read(fd,b',|b|) yields b' = b.
func TestCreateOpenWriteCloseOpenReadRoundTrip(t *testing.T) {
	fs := NewMemFS()
	require.NoError(t, fs.Create("a.txt", 0))

	f, err := fs.Open("a.txt")
	require.NoError(t, err)
	b := []byte("hello world")
	n, err := f.Write(b)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	f.Close()

	f2, err := fs.Open("a.txt")
	require.NoError(t, err)
	got := make([]byte, len(b))
	n, err = f2.Read(got)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, b, got)
}

func TestTellAfterSeek(t *testing.T) {
	fs := NewMemFS()
	fs.Seed("a.txt", []byte("0123456789"))
	f, err := fs.Open("a.txt")
	require.NoError(t, err)
	f.Seek(4)
	assert.Equal(t, int64(4), f.Tell())
}

func TestDenyWrite(t *testing.T) {
	fs := NewMemFS()
	fs.Seed("a.txt", []byte("x"))
	f, err := fs.Open("a.txt")
	require.NoError(t, err)
	f.DenyWrite()
	_, err = f.Write([]byte("y"))
	assert.Error(t, err)
	f.AllowWrite()
	_, err = f.Write([]byte("y"))
	assert.NoError(t, err)
}

func TestRemoveMissingErrors(t *testing.T) {
	fs := NewMemFS()
	assert.Error(t, fs.Remove("nope"))
}

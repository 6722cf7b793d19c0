package util

import "testing"

import "github.com/stretchr/testify/assert"

func TestRoundingHelpers(t *testing.T) {
	assert.Equal(t, 4096, int(Rounddown(4100, 4096)))
	assert.Equal(t, 8192, int(Roundup(4100, 4096)))
	assert.Equal(t, 0, int(Rounddown(0, 4096)))
	assert.Equal(t, 3, Min(3, 5))
	assert.Equal(t, 5, Max(3, 5))
}

func TestReadnWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 4, 0, 0xdeadbeef)
	assert.Equal(t, 0xdeadbeef, Readn(buf, 4, 0)&0xffffffff)

	Writen(buf, 2, 4, 0x1234)
	assert.Equal(t, 0x1234, Readn(buf, 2, 4))

	Writen(buf, 1, 6, 0x7f)
	assert.Equal(t, 0x7f, Readn(buf, 1, 6))
}

package defs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "invalid user pointer", EFAULT.Error())
	assert.Equal(t, "out of swap slots", ENOSWAP.Error())
	assert.Equal(t, "unknown error", Err_t(42).Error())
}

func TestOnlySwapExhaustionIsFatal(t *testing.T) {
	assert.True(t, ENOSWAP.Fatal())
	assert.False(t, ENOMEM.Fatal())
	assert.False(t, EBADELF.Fatal())
}

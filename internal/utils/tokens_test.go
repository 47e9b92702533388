package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoginCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := NewLoginCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
		}
		seen[code] = true
	}
	// 200 выдач из миллиона значений — коллизии возможны, но не тотальные
	assert.Greater(t, len(seen), 150)
}

func TestNewLoginCodeDefaultsDigits(t *testing.T) {
	code, err := NewLoginCode(0)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestNewOpaqueToken(t *testing.T) {
	a, err := NewOpaqueToken(32)
	require.NoError(t, err)
	b, err := NewOpaqueToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64) // hex: два символа на байт
	assert.NotEqual(t, a, b)

	c, err := NewOpaqueToken(0)
	require.NoError(t, err)
	assert.Len(t, c, 64)
}

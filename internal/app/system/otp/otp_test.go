package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.True(t, WellFormed(code), "code %q", code)
		assert.NotEqual(t, '0', rune(code[0]), "code %q has a leading zero", code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 150, "codes should rarely repeat")
}

func TestHashAndVerify(t *testing.T) {
	h := Hash("123456")
	assert.Len(t, h, 64)
	assert.Equal(t, h, Hash("123456"))
	assert.True(t, Verify("123456", h))
	assert.False(t, Verify("654321", h))
	assert.False(t, Verify("123456", ""))
}

func TestWellFormed(t *testing.T) {
	assert.True(t, WellFormed("000123"))
	assert.False(t, WellFormed("12345"))
	assert.False(t, WellFormed("12345a"))
	assert.False(t, WellFormed(" 123456"))
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Secret123!", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123!", hash)
	assert.True(t, VerifyPassword(hash, "Secret123!"))
	assert.False(t, VerifyPassword(hash, "secret123!"))
	assert.False(t, VerifyPassword("not-a-hash", "Secret123!"))
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"strong", "Secret123!", true},
		{"too short", "Se1!", false},
		{"no upper", "secret123!", false},
		{"no digit", "Secret!!!!", false},
		{"no symbol", "Secret1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.in)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}
}

func TestHashTokenIsStable(t *testing.T) {
	a := HashToken("token-value")
	assert.Equal(t, a, HashToken("token-value"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashToken("token-value2"))
}

func TestRandomStringIsUnique(t *testing.T) {
	a, err := RandomString(32)
	require.NoError(t, err)
	b, err := RandomString(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 3, "abc"},
		{"multi byte", "ééé", 2, "éé"},
		{"invalid bytes dropped", "a\xffb", 5, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
		})
	}
}

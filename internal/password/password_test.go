package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("p")
	require.NoError(t, err)
	require.NotEqual(t, "p", hash)

	require.True(t, h.Verify("p", hash))
	require.False(t, h.Verify("wrong", hash))
}

func TestVerify_MalformedHashIsWrongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	require.False(t, h.Verify("p", ""))
	require.False(t, h.Verify("p", "not-a-bcrypt-hash"))
}

func TestNewHasher_OutOfRangeCostFallsBack(t *testing.T) {
	require.Equal(t, DefaultCost, NewHasher(0).cost)
	require.Equal(t, DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	require.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}

func TestHash_TooLong(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	_, err := h.Hash(strings.Repeat("a", MaxBytes))
	require.NoError(t, err)
	_, err = h.Hash(strings.Repeat("a", MaxBytes+1))
	require.ErrorIs(t, err, ErrTooLong)
}

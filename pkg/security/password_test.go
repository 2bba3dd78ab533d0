package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, hasher.Compare(hash, "correct horse"))
	assert.Error(t, hasher.Compare(hash, "wrong horse"))
}

func TestHashRejectsShortPassword(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestCompareEmptyHash(t *testing.T) {
	err := NewBcryptHasher(bcrypt.MinCost).Compare("", "anything-at-all")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

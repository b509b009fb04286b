package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	first, err := HashPassword("same input")
	require.NoError(t, err)
	second, err := HashPassword("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", []byte("not-an-argon2-hash"))
	assert.Error(t, err)
}

func TestResetTokenHashRoundTrip(t *testing.T) {
	token, hash, err := GenerateResetToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Equal(t, hash, HashResetToken(token))
	assert.NotEqual(t, hash, HashResetToken(token+"x"))
}

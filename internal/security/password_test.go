package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArgon2Params = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(testArgon2Params)

	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := hasher.Verify("secret123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("secret124", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_SaltedHashes(t *testing.T) {
	hasher := NewPasswordHasher(testArgon2Params)

	first, err := hasher.Hash("secret123")
	require.NoError(t, err)
	second, err := hasher.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_ParamsFromHash(t *testing.T) {
	hash, err := NewPasswordHasher(testArgon2Params).Hash("secret123")
	require.NoError(t, err)

	stronger := NewPasswordHasher(Argon2Params{Memory: 2048, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	ok, err := stronger.Verify("secret123", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	hasher := NewPasswordHasher(testArgon2Params)

	for _, hash := range []string{
		"",
		"$2a$10$abcdefghijklmnopqrstuv",
		"$argon2id$v=19$m=1024,t=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
	} {
		_, err := hasher.Verify("secret123", hash)
		assert.ErrorIs(t, err, ErrMalformedHash, hash)
	}
}

func TestHashToken(t *testing.T) {
	token, hash, err := NewVerificationToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, HashToken(token), hash)
	assert.NotEqual(t, token, hash)
}

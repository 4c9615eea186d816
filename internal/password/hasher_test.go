package password

import (
	"strings"
	"testing"

	"github.com/paneladmin/apiserver/config"
	"github.com/paneladmin/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testArgon2Config keeps memory low so the suite stays fast.
var testArgon2Config = &Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashers_RoundTrip(t *testing.T) {
	hashers := map[string]Hasher{
		"bcrypt":   NewBcryptHasher(&BcryptConfig{Cost: bcrypt.MinCost}),
		"argon2id": NewArgon2Hasher(testArgon2Config),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash(types.User{Email: "a@b.com"}, "test123")
			require.NoError(t, err)
			assert.NotEqual(t, "test123", hash)

			ok, err := h.Verify("test123", hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify("test124", hash)
			require.NoError(t, err)
			assert.False(t, ok)

			again, err := h.Hash(types.User{}, "test123")
			require.NoError(t, err)
			assert.NotEqual(t, hash, again, "hashes must be salted")
		})
	}
}

func TestArgon2Hasher_Format(t *testing.T) {
	hash, err := NewArgon2Hasher(testArgon2Config).Hash(types.User{}, "p")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)
	assert.Len(t, strings.Split(hash, "$"), 6)
}

func TestArgon2Hasher_VerifyInvalidHash(t *testing.T) {
	h := NewArgon2Hasher(testArgon2Config)
	for _, hash := range []string{"", "not-a-hash", "$bcrypt$...", "$argon2id$v=19$m=65536", "$argon2id$v=1$m=1,t=1,p=1$AA$AA"} {
		_, err := h.Verify("p", hash)
		assert.ErrorIs(t, err, errInvalidArgon2Hash, hash)
	}
}

func TestBcryptHasher_CostClamping(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(nil).Cost())
	assert.Equal(t, bcrypt.MinCost, NewBcryptHasher(&BcryptConfig{Cost: 1}).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewBcryptHasher(&BcryptConfig{Cost: 99}).Cost())
}

func TestBcryptHasher_RejectsLongPassword(t *testing.T) {
	_, err := NewBcryptHasher(&BcryptConfig{Cost: bcrypt.MinCost}).Hash(types.User{}, strings.Repeat("x", 73))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	h, err := New(config.PasswordConfig{Algorithm: "bcrypt", BcryptCost: 5})
	require.NoError(t, err)
	assert.IsType(t, &BcryptHasher{}, h)

	h, err = New(config.PasswordConfig{Algorithm: "argon2id"})
	require.NoError(t, err)
	assert.IsType(t, &Argon2Hasher{}, h)

	_, err = New(config.PasswordConfig{Algorithm: "md5"})
	assert.Error(t, err)
}

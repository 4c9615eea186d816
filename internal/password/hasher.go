// Package password provides password hashing for stored user credentials.
package password

import (
	"fmt"

	"github.com/paneladmin/apiserver/config"
	"github.com/paneladmin/apiserver/types"
)

// Hasher converts a plaintext credential into its stored form.
type Hasher interface {
	// Hash creates a hash of plaintext for the given user record.
	Hash(user types.User, plaintext string) (string, error)

	// Verify checks if plaintext matches a hash produced by Hash.
	Verify(plaintext, hash string) (bool, error)
}

// New builds the hasher selected by cfg.Algorithm.
func New(cfg config.PasswordConfig) (Hasher, error) {
	switch cfg.Algorithm {
	case "", "bcrypt":
		return NewBcryptHasher(&BcryptConfig{Cost: cfg.BcryptCost}), nil
	case "argon2", "argon2id":
		return NewArgon2Hasher(nil), nil
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", cfg.Algorithm)
	}
}

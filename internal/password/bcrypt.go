package password

import (
	"errors"

	"github.com/paneladmin/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// BcryptConfig holds the configuration for bcrypt hashing.
type BcryptConfig struct {
	// Cost is the bcrypt cost factor (4-31).
	Cost int
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt hasher. A nil config or a zero cost
// selects bcrypt.DefaultCost; other costs are clamped to the valid range.
func NewBcryptHasher(cfg *BcryptConfig) *BcryptHasher {
	cost := bcrypt.DefaultCost
	if cfg != nil && cfg.Cost != 0 {
		cost = cfg.Cost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash creates a bcrypt hash. Plaintexts longer than 72 bytes are rejected.
func (h *BcryptHasher) Hash(_ types.User, plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify checks if plaintext matches a bcrypt hash.
func (h *BcryptHasher) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Cost returns the effective cost factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

var _ Hasher = (*BcryptHasher)(nil)

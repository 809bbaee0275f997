// Package password implements credential hashing with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// DefaultCost is the bcrypt work factor used in production.
const DefaultCost = 10

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// Compile-time interface satisfaction check.
var _ driven.PasswordHasher = (*Hasher)(nil)

// Hasher is the bcrypt implementation of the PasswordHasher port.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given bcrypt cost. Costs outside
// bcrypt's accepted range fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", driven.ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", driven.ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches hash.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

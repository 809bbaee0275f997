package driven

import "errors"

// ErrPasswordTooLong is returned by Hash when the plaintext exceeds what the
// hash function can represent.
var ErrPasswordTooLong = errors.New("password too long")

// PasswordHasher turns plaintext passwords into salted one-way hashes.
type PasswordHasher interface {
	// Hash returns a new salted hash. Two calls with the same input return
	// different values.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches hash. It returns false for any
	// mismatch, including a malformed hash.
	Verify(plaintext, hash string) bool
}

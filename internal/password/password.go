package password

import (
	"golang.org/x/crypto/bcrypt"
)

// MaxBytes is the longest password bcrypt accepts.
const MaxBytes = 72

// ErrTooLong is returned by Hash for passwords longer than MaxBytes.
var ErrTooLong = bcrypt.ErrPasswordTooLong

// DefaultCost matches the cost the note library has always used for stored hashes.
const DefaultCost = 10

// dummyHash is compared against when a protected record has no usable hash, so a
// missing or malformed hash costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("notebins-dummy-password"), DefaultCost)

// Hasher provides password hashing and verification.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, falling back to DefaultCost when cost is
// outside bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash generates a bcrypt hash of the given password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxBytes {
		return "", ErrTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches hash. Every failure, including a
// malformed hash, is a plain false.
func (h *Hasher) Verify(password, hash string) bool {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

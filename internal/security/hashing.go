package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by PasswordHasher.Compare when the password does not match.
var ErrPasswordMismatch = errors.New("password mismatch")

// PasswordHasher is the password hashing strategy used for registration and login.
// Callers must not log or persist plaintext passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil on match, ErrPasswordMismatch on mismatch, other errors on a malformed hash.
	Compare(hash, password string) error
}

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a BcryptHasher with cost clamped to bcrypt's range.
// Zero or negative cost selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// NewPasswordHasher picks the strategy by name: "argon2id" or "bcrypt" (default).
func NewPasswordHasher(name string, bcryptCost int) PasswordHasher {
	if name == "argon2id" {
		return NewArgon2Hasher(DefaultArgon2Params)
	}
	return NewBcryptHasher(bcryptCost)
}

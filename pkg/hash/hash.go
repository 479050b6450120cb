package hash

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the work factor the MediSync backend has always used.
const DefaultCost = 10

var ErrEmptyPassword = errors.New("password must not be empty")

type Hasher struct {
	Cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns a salted bcrypt digest. The salt is embedded in the digest, so
// hashing the same password twice yields different strings.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(hashbytes), nil
}

func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

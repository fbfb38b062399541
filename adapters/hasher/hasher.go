// Package hasher hashes operator passwords with bcrypt.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerdesk/ledgerdesk/ports"
)

// Bcrypt hashes with a fixed cost. A cost outside the bcrypt range,
// including zero, falls back to the library default.
type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
}

func (b *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

var _ ports.Hasher = (*Bcrypt)(nil)

// Fake stores the plaintext as the hash. Tests only.
type Fake struct{}

func (Fake) Hash(plaintext string) ([]byte, error) {
	return []byte(plaintext), nil
}

func (Fake) Compare(hash []byte, plaintext string) bool {
	return string(hash) == plaintext
}

var _ ports.Hasher = Fake{}

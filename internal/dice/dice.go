// Package dice produces the rolls. Randomness comes from crypto/rand so a
// client cannot predict a roll from anything it has observed.
package dice

import (
	"crypto/rand"
	"math/big"
)

const sides = 6

// Roller yields dice rolls in [1,6]. Rooms take the interface so tests can
// script exact sequences.
type Roller interface {
	Roll() int
}

type CryptoRoller struct{}

func NewCryptoRoller() *CryptoRoller {
	return &CryptoRoller{}
}

func (that *CryptoRoller) Roll() int {
	n, err := rand.Int(rand.Reader, big.NewInt(sides))
	if err != nil {
		// crypto/rand failing means the process has no working entropy
		// source; there is no fair roll to fall back to.
		panic(err)
	}

	return int(n.Int64()) + 1
}

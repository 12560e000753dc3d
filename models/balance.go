package models

import (
	"errors"
	"math/big"
	"strings"
)

// ErrInvalidBalance is returned when a balance string is not a base 10
// non-negative integer.
var ErrInvalidBalance = errors.New("invalid balance")

// Balance is the credit a relay holds for an address, denominated in the
// base unit of the chain.
type Balance struct {
	i big.Int
}

// ParseBalance parses a decimal string into a Balance.
func ParseBalance(s string) (Balance, error) {
	var b Balance
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return b, ErrInvalidBalance
	}
	if _, ok := b.i.SetString(s, 10); !ok {
		return Balance{}, ErrInvalidBalance
	}
	return b, nil
}

// NewBalance returns a Balance holding a copy of i.
func NewBalance(i *big.Int) Balance {
	var b Balance
	b.i.Set(i)
	return b
}

// Int returns a copy of the balance as a big.Int.
func (b Balance) Int() *big.Int {
	return new(big.Int).Set(&b.i)
}

// Cmp compares two balances.
func (b Balance) Cmp(o Balance) int {
	return b.i.Cmp(&o.i)
}

func (b Balance) String() string {
	return b.i.String()
}

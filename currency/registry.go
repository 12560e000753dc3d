package currency

import (
	"errors"
	"strings"
)

// ErrUnsupportedChain is returned when the registry has no backend for the
// requested chain.
var ErrUnsupportedChain = errors.New("registry does not contain a backend for the given chain")

// Registry maps chain types to their backends.
type Registry map[ChainType]Currency

// Add registers the backend under its own chain type.
func (r Registry) Add(c Currency) {
	r[c.Type()] = c
}

// Get returns the backend for the given chain name. Names are matched case
// insensitively and a testnet "t" prefixed name is accepted as well.
func (r Registry) Get(chain string) (Currency, error) {
	name := strings.ToLower(chain)
	for ct, c := range r {
		if ct.String() == name || ct.String() == "t"+name {
			return c, nil
		}
	}
	return nil, ErrUnsupportedChain
}

// Types returns the chain types held by the registry.
func (r Registry) Types() []ChainType {
	types := make([]ChainType, 0, len(r))
	for ct := range r {
		types = append(types, ct)
	}
	return types
}

package models

import "strings"

// PubInfo is the public metadata published by a relay on its /info
// endpoint. It is fetched once when a client is constructed.
type PubInfo struct {
	Version   string            `json:"version"`
	Gateway   string            `json:"gateway"`
	Addresses map[string]string `json:"addresses"`
}

// DepositAddress returns the relay controlled address for the given chain.
// Chain names are matched in lower case.
func (p PubInfo) DepositAddress(chain string) (string, bool) {
	addr, ok := p.Addresses[strings.ToLower(chain)]
	if !ok || addr == "" {
		return "", false
	}
	return addr, true
}

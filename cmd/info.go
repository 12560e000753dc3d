package cmd

import (
	"context"
	"fmt"
	"github.com/cpacia/bundlr/repo"
	"sort"
)

// Info prints the relay's published metadata.
type Info struct {
	repo.Config
}

// Execute fetches and prints /info.
func (x *Info) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg, nil)
	if err != nil {
		return err
	}
	client, err := newRelayClient(context.Background(), cfg, backend, nil, nil)
	if err != nil {
		return err
	}

	info := client.PubInfo()
	bold.Printf("Relay %s\n", client.URL())
	fmt.Printf("Version: %s\n", info.Version)
	fmt.Printf("Gateway: %s\n", info.Gateway)

	chains := make([]string, 0, len(info.Addresses))
	for chain := range info.Addresses {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	for _, chain := range chains {
		fmt.Printf("Deposit address (%s): %s\n", chain, info.Addresses[chain])
	}
	return nil
}

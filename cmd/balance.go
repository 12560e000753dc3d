package cmd

import (
	"context"
	"fmt"
	"github.com/cpacia/bundlr/repo"
)

// Balance prints the relay balance of an address.
type Balance struct {
	repo.Config
	Address string `long:"address" description:"Address to query (default: the address of the configured key)"`
}

// Execute queries the relay balance.
func (x *Balance) Execute(args []string) error {
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

	address := x.Address
	if address == "" {
		address = addressOf(backend)
	}
	bal, err := client.GetBalance(context.Background(), address)
	if err != nil {
		return err
	}
	fmt.Printf("%s balance of %s: ", backend.Type(), address)
	green.Println(bal.String())
	return nil
}

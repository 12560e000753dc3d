package cmd

import (
	"context"
	"fmt"
	"github.com/cpacia/bundlr/api"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/currency/mock"
	"github.com/cpacia/bundlr/events"
	"github.com/cpacia/bundlr/repo"
	"github.com/cpacia/bundlr/version"
	"math/big"
	"net"
	"os"
	"os/signal"
	"time"
)

// DevNet runs a local relay on a mock chain.
type DevNet struct {
	repo.Config
	Listen    string        `long:"listen" description:"Address the dev relay listens on" default:"127.0.0.1:10000"`
	BlockTime time.Duration `long:"blocktime" description:"Time between mock blocks" default:"10s"`
	BytePrice int64         `long:"byteprice" description:"Price per uploaded byte in mock base units"`
	Fund      int64         `long:"fund" description:"Mint this many mock coins to the key file's account and fund its relay balance with them"`
}

// Execute starts the dev relay and blocks until interrupted.
func (x *DevNet) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	network := mock.NewNetwork()
	listener, err := net.Listen("tcp", x.Listen)
	if err != nil {
		return err
	}
	gateway, err := api.NewGateway(network, &api.GatewayConfig{
		Listener:  listener,
		Version:   version.String(),
		Gateway:   "localhost",
		BytePrice: x.BytePrice,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go network.Mine(ctx, x.BlockTime)
	go func() {
		if err := gateway.Serve(); err != nil {
			log.Debugf("Dev relay stopped: %s", err)
		}
	}()

	relayURL := "http://" + listener.Addr().String()
	bold.Printf("bundlr devnet v%s\n", version.String())
	fmt.Printf("Relay: %s\n", relayURL)
	fmt.Printf("Deposit address: %s\n", gateway.DepositAddress())

	if x.Fund > 0 {
		if err := x.fundAccount(ctx, cfg, network, relayURL); err != nil {
			gateway.Close()
			return err
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	log.Info("Dev relay shutting down...")
	return gateway.Close()
}

// fundAccount mints coins to the key file's mock account and funds the
// relay balance through the regular funding workflow.
func (x *DevNet) fundAccount(ctx context.Context, cfg *repo.Config, network *mock.Network, relayURL string) error {
	mockCfg := *cfg
	mockCfg.Currency = currency.ChainMock.String()
	mockCfg.RelayURL = relayURL

	backend, err := newBackend(&mockCfg, network)
	if err != nil {
		return err
	}
	addr := addressOf(backend)
	network.GenerateToAddress(addr, big.NewInt(x.Fund))

	bus := events.NewBus()
	sub, err := subscribeFunding(bus)
	if err != nil {
		return err
	}
	defer sub.Close()
	go printFundingProgress(sub)

	client, err := newRelayClient(ctx, &mockCfg, backend, nil, bus)
	if err != nil {
		return err
	}
	if _, err := client.Fund(ctx, big.NewInt(x.Fund), 1); err != nil {
		return err
	}
	bal, err := client.GetBalance(ctx, addr)
	if err != nil {
		return err
	}
	green.Printf("Relay balance of %s: %s\n", addr, bal)
	return nil
}

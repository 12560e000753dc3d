package cmd

import (
	"context"
	"errors"
	"fmt"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/events"
	"github.com/cpacia/bundlr/relay"
	"github.com/cpacia/bundlr/repo"
	"github.com/cpacia/bundlr/wallet"
	"math/big"
	"os"
	"os/signal"
)

// bitcoinDivisibility is the number of decimal places of one bitcoin.
const bitcoinDivisibility = 8

// Fund pays the relay from the configured key and waits until the relay
// credits the payment.
type Fund struct {
	repo.Config
	Amount     string  `long:"amount" description:"Amount in base units of the currency"`
	USD        float64 `long:"usd" description:"Amount in US dollars, converted at the current exchange rate"`
	Multiplier float64 `long:"multiplier" description:"Fee multiplier applied to the fee estimate" default:"1"`
}

// Execute runs the funding workflow.
func (x *Fund) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Currency == currency.ChainMock.String() {
		return errors.New("mock coins only exist inside a running devnet, use devnet --fund instead")
	}

	amount, err := x.amount(cfg)
	if err != nil {
		return err
	}

	r, err := repo.NewRepo(cfg.DataDir)
	if err != nil {
		return err
	}
	defer r.Close()

	backend, err := newBackend(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FundTimeout)
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		log.Info("Interrupted, stopping...")
		cancel()
	}()

	bus := events.NewBus()
	sub, err := subscribeFunding(bus)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		printFundingProgress(sub)
		close(done)
	}()

	client, err := newRelayClient(ctx, cfg, backend, r, bus)
	if err != nil {
		return err
	}

	bold.Printf("Funding %s with %s %s base units\n", client.URL(), amount, backend.Type())
	ok, err := client.Fund(ctx, amount, x.Multiplier)
	sub.Close()
	<-done

	var fundErr *relay.FundingError
	if errors.As(err, &fundErr) && fundErr.Sent() {
		yellow.Printf("Transaction %s was sent. Run the notify command to finish funding.\n", fundErr.TxID)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("relay did not acknowledge the funding")
	}
	return nil
}

func (x *Fund) amount(cfg *repo.Config) (*big.Int, error) {
	switch {
	case x.Amount != "" && x.USD != 0:
		return nil, errors.New("use either --amount or --usd")
	case x.Amount != "":
		amount, ok := new(big.Int).SetString(x.Amount, 10)
		if !ok || amount.Sign() <= 0 {
			return nil, fmt.Errorf("invalid amount %q", x.Amount)
		}
		return amount, nil
	case x.USD != 0:
		provider := wallet.NewExchangeRateProvider(cfg.RateSources)
		amount, err := provider.ToBaseUnits(x.USD, "USD", wallet.ReserveCurrency, bitcoinDivisibility)
		if err != nil {
			return nil, err
		}
		log.Infof("$%.2f is %s satoshis", x.USD, amount)
		return amount, nil
	}
	return nil, errors.New("an amount is required, use --amount or --usd")
}

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/currency/bitcoin"
	"github.com/cpacia/bundlr/currency/mock"
	"github.com/cpacia/bundlr/events"
	"github.com/cpacia/bundlr/poll"
	"github.com/cpacia/bundlr/relay"
	"github.com/cpacia/bundlr/repo"
	"github.com/cpacia/proxyclient"
	"github.com/fatih/color"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
	"os"
	"strings"
)

var log = logging.MustGetLogger("CMD")

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)
)

// loadConfig loads the shared configuration and sets up logging and the
// proxy. It must run before any HTTP client is built.
func loadConfig() (*repo.Config, error) {
	cfg, err := repo.LoadConfig(os.Args[1:])
	if err != nil {
		return nil, err
	}
	repo.SetupLogging(cfg.LogDir, cfg.LogLevel)

	if cfg.Proxy != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.Proxy, nil, proxy.Direct)
		if err != nil {
			return nil, errors.Wrap(err, "proxy")
		}
		proxyclient.SetProxy(dialer)
		log.Infof("Using SOCKS5 proxy at %s", cfg.Proxy)
	}
	return cfg, nil
}

// newBackend builds the configured currency backend. Mock backends are
// attached to network, or to a fresh empty network if it is nil.
func newBackend(cfg *repo.Config, network *mock.Network) (currency.Currency, error) {
	switch cfg.Currency {
	case currency.ChainBitcoin.String(), "btc":
		params := &chaincfg.MainNetParams
		if cfg.Testnet {
			params = &chaincfg.TestNet3Params
		}
		key, err := loadBitcoinKey(cfg, params)
		if err != nil {
			return nil, err
		}
		return bitcoin.NewCurrency(cfg.EsploraEndpoint(), key, params)
	case currency.ChainMock.String():
		signer, err := loadMockSigner(cfg)
		if err != nil {
			return nil, err
		}
		if network == nil {
			network = mock.NewNetwork()
		}
		return mock.NewCurrency(network, mock.WithSigner(signer))
	default:
		return nil, fmt.Errorf("%w: %s", currency.ErrUnsupportedChain, cfg.Currency)
	}
}

func loadBitcoinKey(cfg *repo.Config, params *chaincfg.Params) (*btcec.PrivateKey, error) {
	switch {
	case cfg.WIF != "":
		return bitcoin.KeyFromWIF(cfg.WIF, params)
	case cfg.Mnemonic != "":
		return bitcoin.KeyFromMnemonic(cfg.Mnemonic, "", params)
	}

	key, err := repo.ReadKeyFile(cfg.KeyFilePath())
	if err != nil {
		return nil, errors.Wrap(err, "reading key file, run init to create one")
	}
	// A key file holds either a WIF key or a mnemonic.
	if strings.Contains(key, " ") {
		return bitcoin.KeyFromMnemonic(key, "", params)
	}
	return bitcoin.KeyFromWIF(key, params)
}

func loadMockSigner(cfg *repo.Config) (*mock.Signer, error) {
	key, err := repo.ReadKeyFile(cfg.KeyFilePath())
	if err != nil {
		return nil, errors.Wrap(err, "reading key file, run init to create one")
	}
	b, err := hex.DecodeString(key)
	if err != nil {
		return nil, errors.Wrap(err, "mock key file must be hex encoded")
	}
	return mock.NewSignerFromKey(b)
}

// pollOptions maps the config onto poller overrides. A negative
// MaxNotFound waits until the fund timeout.
func pollOptions(cfg *repo.Config) []poll.Option {
	switch {
	case cfg.MaxNotFound < 0:
		return []poll.Option{poll.MaxNotFound(0)}
	case cfg.MaxNotFound > 0:
		return []poll.Option{poll.MaxNotFound(cfg.MaxNotFound)}
	}
	return nil
}

// newRelayClient connects to the configured relay. The repo and bus are
// optional.
func newRelayClient(ctx context.Context, cfg *repo.Config, backend currency.Currency, r *repo.Repo, bus events.Bus) (*relay.Client, error) {
	opts := []relay.Option{relay.WithPollOptions(pollOptions(cfg)...)}
	if r != nil {
		opts = append(opts, relay.WithJournal(r.Journal()))
	}
	if bus != nil {
		opts = append(opts, relay.WithEventBus(bus))
	}
	return relay.New(ctx, cfg.RelayURL, backend, opts...)
}

// printFundingProgress prints funding events until the subscription is
// closed.
func printFundingProgress(sub events.Subscription) {
	for e := range sub.Out() {
		switch evt := e.(type) {
		case *events.FundingSent:
			green.Printf("Sent %s to %s in transaction %s (fee %s)\n", evt.Amount, evt.To, evt.TxID, evt.Fee)
		case *events.FundingConfirmationUpdate:
			yellow.Printf("Transaction %s: %d/%d confirmations\n", evt.TxID, evt.Confirmations, evt.Required)
		case *events.FundingConfirmed:
			green.Printf("Transaction %s confirmed\n", evt.TxID)
		case *events.FundingCredited:
			green.Printf("Relay credited transaction %s\n", evt.TxID)
		case *events.FundingFailed:
			color.Red("Funding failed at %s: %s", evt.Step, evt.Err)
		}
	}
}

func subscribeFunding(bus events.Bus) (events.Subscription, error) {
	return bus.Subscribe([]interface{}{
		new(events.FundingSent),
		new(events.FundingConfirmationUpdate),
		new(events.FundingConfirmed),
		new(events.FundingCredited),
		new(events.FundingFailed),
	}, events.BufSize(32))
}

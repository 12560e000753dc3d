package wallet

import (
	"errors"
	"github.com/cpacia/bundlr/currency"
	iwallet "github.com/cpacia/wallet-interface"
	"strings"
)

// ErrUnsupportedCoin is returned when the multiwallet has no wallet for
// the requested coin.
var ErrUnsupportedCoin = errors.New("multiwallet does not contain an implementation for the given coin")

// Testnet coins carry a T in front of the mainnet currency code.
const (
	CtTestnetBitcoin iwallet.CoinType = "T" + iwallet.CtBitcoin
	CtTestnetMock    iwallet.CoinType = "T" + iwallet.CtMock
)

var chainTypes = map[string]currency.ChainType{
	iwallet.CtBitcoin:        currency.ChainBitcoin,
	string(CtTestnetBitcoin): currency.ChainBitcoinTestnet,
	iwallet.CtMock:           currency.ChainMock,
	string(CtTestnetMock):    currency.ChainMock,
}

// ChainTypeForCoin maps a wallet coin type to the chain name used by the
// relay. Unknown coins use their lower case currency code.
func ChainTypeForCoin(coin iwallet.CoinType) currency.ChainType {
	code := coin.CurrencyCode()
	if ct, ok := chainTypes[code]; ok {
		return ct
	}
	return currency.ChainType(strings.ToLower(code))
}

// Multiwallet holds one wallet per coin.
type Multiwallet map[iwallet.CoinType]iwallet.Wallet

// Start opens every wallet.
func (w Multiwallet) Start() error {
	for ct, wallet := range w {
		if err := wallet.OpenWallet(); err != nil {
			return err
		}
		log.Debugf("Opened %s wallet", ct.CurrencyCode())
	}
	return nil
}

// Close closes every wallet.
func (w Multiwallet) Close() {
	for ct, wallet := range w {
		if err := wallet.CloseWallet(); err != nil {
			log.Errorf("Error closing %s wallet: %s", ct.CurrencyCode(), err)
		}
	}
}

func (w Multiwallet) WalletForCurrencyCode(currencyCode string) (iwallet.Wallet, error) {
	code := strings.ToUpper(currencyCode)
	for cc, wl := range w {
		if cc.CurrencyCode() == code || cc.CurrencyCode() == "T"+code {
			return wl, nil
		}
	}
	return nil, ErrUnsupportedCoin
}

// Registry returns a currency registry with a backend for every wallet
// that has a signer. Wallets without a signer cannot sign bundles and are
// left out.
func (w Multiwallet) Registry(signers map[iwallet.CoinType]currency.Signer, policy currency.ConfirmationPolicy) currency.Registry {
	reg := make(currency.Registry)
	for ct, wl := range w {
		signer, ok := signers[ct]
		if !ok {
			continue
		}
		reg.Add(NewCurrency(wl, ct, signer, policy))
	}
	return reg
}

package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cpacia/proxyclient"
	"math"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ReserveCurrency is the currency the rate sources quote against. Rates
// for any other coin are derived through it. If you want to know the USD
// price of BCH we first get the USD price of BTC, then get the ratio of
// BTC/BCH and use it to calculate the BCH USD price.
const ReserveCurrency = "BTC"

const cacheTTL = time.Minute * 10

// ExchangeRateProvider converts between coins and fiat currencies using
// BitcoinAverage style rate sources.
type ExchangeRateProvider struct {
	cache       map[string]float64
	lastQueried time.Time
	mtx         sync.Mutex
	providers   []provider
}

// NewExchangeRateProvider returns a new ExchangeRateProvider. The http
// client uses the proxy set in proxyclient, if any.
func NewExchangeRateProvider(sources []string) *ExchangeRateProvider {
	e := ExchangeRateProvider{}

	client := proxyclient.NewHttpClient()
	client.Timeout = time.Minute

	for _, src := range sources {
		e.providers = append(e.providers, &bitcoinAverageAPI{src, client})
	}
	return &e
}

// GetRate returns how many units of `to` one unit of `base` is worth.
// Testnet codes are priced as their mainnet counterpart.
func (e *ExchangeRateProvider) GetRate(base, to string, breakCache bool) (float64, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	base = normalizeCode(base)
	to = normalizeCode(to)

	if breakCache || e.cache == nil || e.lastQueried.Add(cacheTTL).Before(time.Now()) {
		rates, err := e.fetchRatesFromProviders()
		if err != nil {
			return 0, err
		}
		e.cache = rates
		e.lastQueried = time.Now()
	}

	baseRate, ok := e.cache[base]
	if !ok || baseRate == 0 {
		return 0, fmt.Errorf("rate for %s not found", base)
	}
	toRate, ok := e.cache[to]
	if !ok {
		return 0, fmt.Errorf("rate for %s not found", to)
	}
	return toRate / baseRate, nil
}

// ToBaseUnits converts a fiat amount into base units of coin, where one
// coin is 10^divisibility base units. The result is rounded up.
func (e *ExchangeRateProvider) ToBaseUnits(fiatAmount float64, fiat, coin string, divisibility uint) (*big.Int, error) {
	if fiatAmount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	rate, err := e.GetRate(coin, fiat, false)
	if err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid %s rate for %s", fiat, coin)
	}
	coins := new(big.Float).Quo(big.NewFloat(fiatAmount), big.NewFloat(rate))
	units := new(big.Float).Mul(coins, big.NewFloat(math.Pow10(int(divisibility))))
	i, acc := units.Int(nil)
	if acc == big.Below {
		i.Add(i, big.NewInt(1))
	}
	return i, nil
}

// fetchRatesFromProviders queries the exchange rate sources serially until it gets a response back.
func (e *ExchangeRateProvider) fetchRatesFromProviders() (map[string]float64, error) {
	for _, provider := range e.providers {
		rates, err := provider.fetchRates()
		if err == nil {
			return rates, nil
		}
		log.Warningf("Exchange rate provider failed: %s", err)
	}
	return nil, errors.New("all exchange rate providers failed")
}

func normalizeCode(code string) string {
	code = strings.ToUpper(code)
	if len(code) > 3 && strings.HasPrefix(code, "T") {
		code = code[1:]
	}
	return code
}

// provider is an interface to a specific exchange rate API.
type provider interface {
	// fetchRates returns the price of one ReserveCurrency in every
	// currency the source knows about.
	fetchRates() (map[string]float64, error)
}

// bitcoinAverageAPI is a provider for sources serving the BitcoinAverage
// ticker format.
type bitcoinAverageAPI struct {
	url    string
	client *http.Client
}

type apiRate struct {
	Last float64 `json:"last"`
}

func (b *bitcoinAverageAPI) fetchRates() (map[string]float64, error) {
	resp, err := b.client.Get(b.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	rates := make(map[string]apiRate)
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return nil, err
	}

	ret := make(map[string]float64, len(rates)+1)
	for cc, rate := range rates {
		if rate.Last <= 0 {
			continue
		}
		ret[strings.ToUpper(cc)] = rate.Last
	}
	ret[ReserveCurrency] = 1
	return ret, nil
}

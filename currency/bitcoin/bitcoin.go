// Package bitcoin implements a currency backend for Bitcoin that builds
// and signs P2PKH transactions locally and talks to an Esplora REST API
// for chain state.
package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/models"
	"github.com/cpacia/proxyclient"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"math"
	"math/big"
	"net/http"
	"strings"
	"time"
)

var log = logging.MustGetLogger("BTC")

const (
	// feeTarget is the confirmation target, in blocks, used for fee
	// estimation.
	feeTarget = 2

	// dustLimit is the smallest change output that will be created.
	// Smaller change is left to the miner.
	dustLimit = 546

	txOverheadVsize = 10
	p2pkhInputVsize = 148
	p2pkhOutputSize = 34
)

// DefaultPolicy is the confirmation policy used on mainnet.
var DefaultPolicy = currency.ConfirmationPolicy{
	MinConfirmations: 1,
	PollInterval:     30 * time.Second,
	MaxNotFound:      20,
}

var _ currency.Currency = (*Currency)(nil)

// Currency is a Bitcoin backend. Funds are spent from the single P2PKH
// address of its key and change is returned to the same address.
type Currency struct {
	api    *esplora
	params *chaincfg.Params
	key    *btcec.PrivateKey
	addr   *btcutil.AddressPubKeyHash
	signer *Signer
	policy currency.ConfirmationPolicy
}

// Option configures a bitcoin Currency.
type Option func(c *Currency)

// WithHTTPClient sets the client used for Esplora requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Currency) {
		c.api.client = client
	}
}

// WithPolicy overrides the confirmation policy.
func WithPolicy(policy currency.ConfirmationPolicy) Option {
	return func(c *Currency) {
		c.policy = policy
	}
}

// NewCurrency returns a backend that spends from key and queries the
// Esplora API at esploraURL.
func NewCurrency(esploraURL string, key *btcec.PrivateKey, params *chaincfg.Params, opts ...Option) (*Currency, error) {
	if key == nil {
		return nil, errors.New("private key is nil")
	}
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(key.PubKey().SerializeCompressed()), params)
	if err != nil {
		return nil, err
	}
	client := proxyclient.NewHttpClient()
	client.Timeout = time.Minute

	c := &Currency{
		api: &esplora{
			url:    strings.TrimSuffix(esploraURL, "/"),
			client: client,
		},
		params: params,
		key:    key,
		addr:   addr,
		signer: NewSigner(key),
		policy: DefaultPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the address funds are spent from.
func (c *Currency) Address() string {
	return c.addr.EncodeAddress()
}

func (c *Currency) Type() currency.ChainType {
	if c.params.Net == chaincfg.MainNetParams.Net {
		return currency.ChainBitcoin
	}
	return currency.ChainBitcoinTestnet
}

func (c *Currency) NeedsFee() bool {
	return true
}

// Fee estimates the fee to send amount to the given address. The fee rate
// for a two block target is scaled by multiplier and applied to the size
// of the transaction coin selection would build. The result is the same
// for identical inputs as long as the wallet's coins and the fee
// estimates do not change.
func (c *Currency) Fee(ctx context.Context, amount *big.Int, to string, multiplier float64) (*big.Int, error) {
	if err := currency.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	rate, err := c.api.feeRate(ctx, feeTarget)
	if err != nil {
		return nil, err
	}
	rate *= multiplier

	utxos, err := c.api.utxos(ctx, c.Address())
	if err != nil {
		return nil, err
	}
	_, fee, err := selectCoins(utxos, amount.Int64(), func(nIn int) int64 {
		return feeForSize(estimateVsize(nIn, 2), rate)
	})
	if err != nil {
		return nil, err
	}
	return big.NewInt(fee), nil
}

// CreateTx builds and signs a transaction paying amount to the recipient
// with exactly the given fee.
func (c *Currency) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*models.Tx, error) {
	if err := currency.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if !amount.IsInt64() {
		return nil, &currency.ConstructionError{Field: "amount", Reason: "exceeds the bitcoin supply"}
	}
	if fee == nil {
		fee = big.NewInt(0)
	}
	if fee.Sign() < 0 || !fee.IsInt64() {
		return nil, &currency.ConstructionError{Field: "fee", Reason: "out of range"}
	}
	toAddr, err := btcutil.DecodeAddress(to, c.params)
	if err != nil || !toAddr.IsForNet(c.params) {
		return nil, &currency.ConstructionError{Field: "recipient", Reason: "not a bitcoin address for " + c.params.Name}
	}
	payScript, err := txscript.PayToAddrScript(toAddr)
	if err != nil {
		return nil, &currency.ConstructionError{Field: "recipient", Reason: err.Error()}
	}

	utxos, err := c.api.utxos(ctx, c.Address())
	if err != nil {
		return nil, err
	}
	inputs, _, err := selectCoins(utxos, amount.Int64(), func(int) int64 { return fee.Int64() })
	if err != nil {
		return nil, err
	}

	ourScript, err := txscript.PayToAddrScript(c.addr)
	if err != nil {
		return nil, err
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	var total int64
	for _, u := range inputs {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, currency.NewChainError(currency.KindInvalid, "create", err)
		}
		msgTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, u.Vout), nil, nil))
		total += u.Value
	}
	msgTx.AddTxOut(wire.NewTxOut(amount.Int64(), payScript))
	if change := total - amount.Int64() - fee.Int64(); change >= dustLimit {
		msgTx.AddTxOut(wire.NewTxOut(change, ourScript))
	}

	for i := range msgTx.TxIn {
		sigScript, err := txscript.SignatureScript(msgTx, i, ourScript, txscript.SigHashAll, c.key, true)
		if err != nil {
			return nil, err
		}
		msgTx.TxIn[i].SignatureScript = sigScript
	}

	var buf bytes.Buffer
	if err := msgTx.Serialize(&buf); err != nil {
		return nil, err
	}
	return &models.Tx{
		ID:      models.TxID(msgTx.TxHash().String()),
		From:    c.Address(),
		To:      to,
		Amount:  new(big.Int).Set(amount),
		Fee:     new(big.Int).Set(fee),
		Pending: true,
		Raw:     buf.Bytes(),
	}, nil
}

func (c *Currency) SendTx(ctx context.Context, tx *models.Tx) (*models.Tx, error) {
	if tx == nil || len(tx.Raw) == 0 {
		return nil, currency.NewChainError(currency.KindInvalid, "send", errors.New("transaction is not signed"))
	}
	txid, err := c.api.broadcast(ctx, hex.EncodeToString(tx.Raw))
	if err != nil {
		return nil, err
	}
	sent := *tx
	sent.ID = models.TxID(txid)
	sent.Pending = true
	log.Infof("Broadcast bitcoin transaction %s", txid)
	return &sent, nil
}

func (c *Currency) TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error) {
	status, err := c.api.status(ctx, id.String())
	if err != nil {
		return models.TxStatus{}, err
	}
	if !status.Confirmed {
		return models.TxStatus{}, nil
	}
	tip, err := c.api.tipHeight(ctx)
	if err != nil {
		return models.TxStatus{}, err
	}
	var confs uint64
	if tip >= status.BlockHeight {
		confs = tip - status.BlockHeight + 1
	}
	return models.TxStatus{
		Confirmations: confs,
		Height:        status.BlockHeight,
		BlockHash:     status.BlockHash,
	}, nil
}

func (c *Currency) Signer() currency.Signer {
	return c.signer
}

func (c *Currency) ConfirmationPolicy() currency.ConfirmationPolicy {
	return c.policy
}

// selectCoins picks utxos, largest first, until they cover amount plus the
// fee returned by feeFn for the number of inputs selected so far.
func selectCoins(utxos []utxo, amount int64, feeFn func(nIn int) int64) ([]utxo, int64, error) {
	var (
		selected []utxo
		total    int64
	)
	for _, u := range utxos {
		selected = append(selected, u)
		total += u.Value
		fee := feeFn(len(selected))
		if total >= amount+fee {
			return selected, fee, nil
		}
	}
	return nil, 0, currency.NewChainError(currency.KindInsufficientFunds, "select coins",
		errors.Errorf("have %d satoshis, need more than %d", total, amount))
}

func estimateVsize(nIn, nOut int) int64 {
	return int64(txOverheadVsize + p2pkhInputVsize*nIn + p2pkhOutputSize*nOut)
}

func feeForSize(vsize int64, rate float64) int64 {
	return int64(math.Ceil(float64(vsize) * rate))
}

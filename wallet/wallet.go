package wallet

import (
	"context"
	"errors"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/models"
	iwallet "github.com/cpacia/wallet-interface"
	"github.com/op/go-logging"
	"math/big"
)

var log = logging.MustGetLogger("WALLET")

var _ currency.Currency = (*Currency)(nil)

// Currency adapts a wallet-interface Wallet into a currency backend. The
// wallet does its own coin selection and broadcast. Since the interface
// does not expose private keys the signer for bundle transactions is
// supplied separately.
type Currency struct {
	wallet iwallet.Wallet
	coin   iwallet.CoinType
	chain  currency.ChainType
	signer currency.Signer
	policy currency.ConfirmationPolicy
}

// NewCurrency wraps w. The chain type is derived from the coin type.
func NewCurrency(w iwallet.Wallet, coin iwallet.CoinType, signer currency.Signer, policy currency.ConfirmationPolicy) *Currency {
	return &Currency{
		wallet: w,
		coin:   coin,
		chain:  ChainTypeForCoin(coin),
		signer: signer,
		policy: policy,
	}
}

func (c *Currency) Type() currency.ChainType {
	return c.chain
}

func (c *Currency) NeedsFee() bool {
	return true
}

// Fee returns the wallet's normal fee estimate for amount scaled by
// multiplier and rounded up.
func (c *Currency) Fee(ctx context.Context, amount *big.Int, to string, multiplier float64) (*big.Int, error) {
	if err := currency.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, currency.NewChainError(currency.KindUnavailable, "fee", err)
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	est, err := c.wallet.EstimateSpendFee(iwallet.NewAmount(amount), iwallet.FlNormal)
	if err != nil {
		return nil, currency.NewChainError(currency.KindUnavailable, "fee", err)
	}
	return scale(amountToInt(est), multiplier), nil
}

func (c *Currency) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*models.Tx, error) {
	if err := currency.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if to == "" {
		return nil, &currency.ConstructionError{Field: "recipient", Reason: "empty address"}
	}
	if fee == nil {
		fee = big.NewInt(0)
	}
	if fee.Sign() < 0 {
		return nil, &currency.ConstructionError{Field: "fee", Reason: "negative"}
	}
	from, err := c.wallet.CurrentAddress()
	if err != nil {
		return nil, currency.NewChainError(currency.KindUnavailable, "create", err)
	}
	return &models.Tx{
		From:    from.String(),
		To:      to,
		Amount:  new(big.Int).Set(amount),
		Fee:     new(big.Int).Set(fee),
		Pending: true,
	}, nil
}

// SendTx spends through the wallet inside a wallet transaction. The fee
// level passed to the wallet is the one whose estimate is closest to the
// transaction's fee.
func (c *Currency) SendTx(ctx context.Context, tx *models.Tx) (*models.Tx, error) {
	if tx == nil {
		return nil, currency.NewChainError(currency.KindInvalid, "send", errors.New("nil transaction"))
	}
	if err := ctx.Err(); err != nil {
		return nil, currency.NewChainError(currency.KindUnavailable, "send", err)
	}
	level := c.feeLevel(tx.Amount, tx.Fee)

	dbtx, err := c.wallet.Begin()
	if err != nil {
		return nil, currency.NewChainError(currency.KindUnavailable, "send", err)
	}
	id, err := c.wallet.Spend(dbtx, iwallet.NewAddress(tx.To, c.coin), iwallet.NewAmount(tx.Amount), level)
	if err != nil {
		if rerr := dbtx.Rollback(); rerr != nil {
			log.Errorf("Error rolling back wallet transaction: %s", rerr)
		}
		return nil, currency.NewChainError(currency.KindRejected, "send", err)
	}
	if err := dbtx.Commit(); err != nil {
		return nil, currency.NewChainError(currency.KindRejected, "send", err)
	}

	sent := *tx
	sent.ID = models.TxID(id)
	sent.Pending = true
	log.Infof("Wallet sent %s transaction %s", c.coin.CurrencyCode(), id)
	return &sent, nil
}

// TxStatus reports a transaction the wallet does not know about as not
// found so that it keeps being polled.
func (c *Currency) TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.TxStatus{}, currency.NewChainError(currency.KindUnavailable, "status", err)
	}
	txn, err := c.wallet.GetTransaction(iwallet.TransactionID(id))
	if err != nil {
		return models.TxStatus{}, currency.NewChainError(currency.KindNotFound, "status", err)
	}
	if txn.Height == 0 {
		return models.TxStatus{}, nil
	}
	info, err := c.wallet.BlockchainInfo()
	if err != nil {
		return models.TxStatus{}, currency.NewChainError(currency.KindUnavailable, "status", err)
	}
	var confs uint64
	if info.Height >= txn.Height {
		confs = info.Height - txn.Height + 1
	}
	return models.TxStatus{
		Confirmations: confs,
		Height:        txn.Height,
	}, nil
}

func (c *Currency) Signer() currency.Signer {
	return c.signer
}

func (c *Currency) ConfirmationPolicy() currency.ConfirmationPolicy {
	return c.policy
}

func (c *Currency) feeLevel(amount, fee *big.Int) iwallet.FeeLevel {
	if amount == nil || fee == nil {
		return iwallet.FlNormal
	}
	var (
		best     = iwallet.FlNormal
		bestDiff *big.Int
	)
	for _, level := range []iwallet.FeeLevel{iwallet.FlNormal, iwallet.FlPriority, iwallet.FlEconomic} {
		est, err := c.wallet.EstimateSpendFee(iwallet.NewAmount(amount), level)
		if err != nil {
			continue
		}
		diff := new(big.Int).Sub(amountToInt(est), fee)
		diff.Abs(diff)
		if bestDiff == nil || diff.Cmp(bestDiff) < 0 {
			best, bestDiff = level, diff
		}
	}
	return best
}

func amountToInt(a iwallet.Amount) *big.Int {
	i := big.Int(a)
	return new(big.Int).Set(&i)
}

func scale(i *big.Int, multiplier float64) *big.Int {
	f := new(big.Float).Mul(new(big.Float).SetInt(i), big.NewFloat(multiplier))
	z, acc := f.Int(nil)
	if acc == big.Below {
		z.Add(z, big.NewInt(1))
	}
	return z
}

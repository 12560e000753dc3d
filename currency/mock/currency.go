package mock

import (
	"context"
	"encoding/hex"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/models"
	"math/big"
	"time"
)

// DefaultPolicy is the confirmation policy of the mock chain.
var DefaultPolicy = currency.ConfirmationPolicy{
	MinConfirmations: 1,
	PollInterval:     time.Second,
	MaxNotFound:      10,
}

var _ currency.Currency = (*Currency)(nil)

// Currency is a zero-fee backend on a mock Network. Its address is the hex
// encoded ed25519 public key of its signer.
type Currency struct {
	network *Network
	signer  *Signer
	policy  currency.ConfirmationPolicy
}

// Option configures a mock Currency.
type Option func(c *Currency)

// WithPolicy overrides the confirmation policy.
func WithPolicy(policy currency.ConfirmationPolicy) Option {
	return func(c *Currency) {
		c.policy = policy
	}
}

// WithSigner uses the given signer instead of a freshly generated one.
func WithSigner(s *Signer) Option {
	return func(c *Currency) {
		c.signer = s
	}
}

// NewCurrency returns a backend on the given network with a new random key.
func NewCurrency(network *Network, opts ...Option) (*Currency, error) {
	c := &Currency{
		network: network,
		policy:  DefaultPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.signer == nil {
		s, err := NewSigner()
		if err != nil {
			return nil, err
		}
		c.signer = s
	}
	return c, nil
}

// Address returns the address of this backend's key on the mock chain.
func (c *Currency) Address() string {
	return hex.EncodeToString(c.signer.PublicKey())
}

// Network returns the network the backend is connected to.
func (c *Currency) Network() *Network {
	return c.network
}

func (c *Currency) Type() currency.ChainType {
	return currency.ChainMock
}

// NeedsFee returns false. The mock chain has no fees.
func (c *Currency) NeedsFee() bool {
	return false
}

func (c *Currency) Fee(ctx context.Context, amount *big.Int, to string, multiplier float64) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (c *Currency) CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*models.Tx, error) {
	if err := currency.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if !ValidAddress(to) {
		return nil, &currency.ConstructionError{Field: "recipient", Reason: "not a mock address"}
	}
	if fee == nil {
		fee = big.NewInt(0)
	}
	return &models.Tx{
		From:    c.Address(),
		To:      to,
		Amount:  new(big.Int).Set(amount),
		Fee:     new(big.Int).Set(fee),
		Pending: true,
	}, nil
}

func (c *Currency) SendTx(ctx context.Context, tx *models.Tx) (*models.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, currency.NewChainError(currency.KindUnavailable, "send", err)
	}
	sent, err := c.network.broadcast(*tx)
	if err != nil {
		return nil, err
	}
	log.Debugf("Broadcast mock transaction %s", sent.ID)
	return &sent, nil
}

func (c *Currency) TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.TxStatus{}, currency.NewChainError(currency.KindUnavailable, "status", err)
	}
	return c.network.Status(id)
}

func (c *Currency) Signer() currency.Signer {
	return c.signer
}

func (c *Currency) ConfirmationPolicy() currency.ConfirmationPolicy {
	return c.policy
}

// ValidAddress returns whether addr is a well formed mock address.
func ValidAddress(addr string) bool {
	b, err := hex.DecodeString(addr)
	return err == nil && len(b) == 32
}

// Package currency defines the capability set every chain backend must
// provide in order to fund a relay balance and sign bundle transactions.
package currency

import (
	"context"
	"github.com/cpacia/bundlr/models"
	"math/big"
	"strings"
	"time"
)

// ChainType identifies a backend. It is used to build relay endpoint paths
// and to look up the relay's deposit address.
type ChainType string

// String returns the lower case form used by relay endpoints.
func (c ChainType) String() string {
	return strings.ToLower(string(c))
}

const (
	ChainMock           ChainType = "mock"
	ChainBitcoin        ChainType = "bitcoin"
	ChainBitcoinTestnet ChainType = "tbitcoin"
)

// SignatureType identifies the signing scheme of a Signer. The numeric
// value is written into the bundle wire format.
type SignatureType uint16

const (
	SignatureSecp256k1 SignatureType = 1
	SignatureEd25519   SignatureType = 2
)

// SignatureLength returns the fixed length in bytes of signatures produced
// with this scheme.
func (s SignatureType) SignatureLength() int {
	switch s {
	case SignatureSecp256k1:
		return 65
	case SignatureEd25519:
		return 64
	default:
		return 0
	}
}

// PublicKeyLength returns the fixed length in bytes of public keys for
// this scheme.
func (s SignatureType) PublicKeyLength() int {
	switch s {
	case SignatureSecp256k1:
		return 33
	case SignatureEd25519:
		return 32
	default:
		return 0
	}
}

func (s SignatureType) String() string {
	switch s {
	case SignatureSecp256k1:
		return "secp256k1"
	case SignatureEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// Signer signs arbitrary payloads with a backend's private key. It is a
// handle to the key, not a copy of it. Implementations must be safe for
// concurrent use.
type Signer interface {
	// SignatureType returns the scheme used by Sign.
	SignatureType() SignatureType

	// PublicKey returns the serialized public key which verifies
	// signatures produced by Sign.
	PublicKey() []byte

	// Sign returns a signature over msg.
	Sign(msg []byte) ([]byte, error)
}

// ConfirmationPolicy holds the per chain polling constants.
type ConfirmationPolicy struct {
	// MinConfirmations is the number of confirmations after which a
	// transaction is treated as final.
	MinConfirmations uint64

	// PollInterval is the delay between two status queries.
	PollInterval time.Duration

	// MaxNotFound is the number of consecutive "not found" responses
	// tolerated before giving up. Zero means no limit.
	MaxNotFound int
}

// Currency is the capability set of a chain backend.
type Currency interface {
	// Type returns the chain identifier of this backend.
	Type() ChainType

	// NeedsFee returns whether a fee must be computed before building a
	// transaction. Chains with protocol-fixed or zero fees return false.
	NeedsFee() bool

	// Fee estimates the fee to send amount to the recipient. The multiplier
	// scales the estimate. Results are deterministic for identical inputs at
	// the same chain state.
	Fee(ctx context.Context, amount *big.Int, to string, multiplier float64) (*big.Int, error)

	// CreateTx builds a transaction ready for broadcast. It returns a
	// *ConstructionError if the amount is not positive or the recipient is
	// malformed for the chain.
	CreateTx(ctx context.Context, amount *big.Int, to string, fee *big.Int) (*models.Tx, error)

	// SendTx broadcasts the transaction and returns it with its ID set.
	// Failures are returned as *ChainError.
	SendTx(ctx context.Context, tx *models.Tx) (*models.Tx, error)

	// TxStatus returns the current confirmation status of a transaction.
	// A transaction that is not yet visible returns a *ChainError of kind
	// KindNotFound.
	TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error)

	// Signer returns the signing handle for this backend's key.
	Signer() Signer

	// ConfirmationPolicy returns the polling constants for this chain.
	ConfirmationPolicy() ConfirmationPolicy
}

// ValidateAmount returns a *ConstructionError if amount is nil or not
// positive.
func ValidateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return &ConstructionError{Field: "amount", Reason: "must be greater than zero"}
	}
	return nil
}

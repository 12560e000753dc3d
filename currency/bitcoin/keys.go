package bitcoin

import (
	"crypto/sha256"
	"errors"
	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/cpacia/bundlr/currency"
	"github.com/tyler-smith/go-bip39"
	"strings"
)

// ErrWrongNetwork is returned when a key or address is encoded for a
// different network than the one in use.
var ErrWrongNetwork = errors.New("key is not for this network")

var _ currency.Signer = (*Signer)(nil)

// Signer produces compact recoverable secp256k1 signatures over the
// sha256 digest of a message.
type Signer struct {
	key *btcec.PrivateKey
}

// NewSigner wraps a private key.
func NewSigner(key *btcec.PrivateKey) *Signer {
	return &Signer{key: key}
}

func (s *Signer) SignatureType() currency.SignatureType {
	return currency.SignatureSecp256k1
}

// PublicKey returns the 33 byte compressed public key.
func (s *Signer) PublicKey() []byte {
	return s.key.PubKey().SerializeCompressed()
}

func (s *Signer) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	return btcec.SignCompact(btcec.S256(), s.key, digest[:], true)
}

// KeyFromWIF decodes a private key in wallet import format.
func KeyFromWIF(wif string, params *chaincfg.Params) (*btcec.PrivateKey, error) {
	w, err := btcutil.DecodeWIF(strings.TrimSpace(wif))
	if err != nil {
		return nil, err
	}
	if !w.IsForNet(params) {
		return nil, ErrWrongNetwork
	}
	return w.PrivKey, nil
}

// KeyFromMnemonic derives the first receiving key of the first BIP44
// account from a BIP39 mnemonic.
//
// m / 44' / coin_type' / 0' / 0 / 0
func KeyFromMnemonic(mnemonic, password string, params *chaincfg.Params) (*btcec.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(strings.TrimSpace(mnemonic), password)
	if err != nil {
		return nil, err
	}
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, err
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + params.HDCoinType,
		hdkeychain.HardenedKeyStart,
		0,
		0,
	}
	key := master
	for _, i := range path {
		key, err = key.Child(i)
		if err != nil {
			return nil, err
		}
	}
	return key.ECPrivKey()
}

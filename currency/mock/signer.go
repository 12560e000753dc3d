package mock

import (
	"crypto/rand"
	"errors"
	"github.com/agl/ed25519"
	"github.com/cpacia/bundlr/currency"
)

var _ currency.Signer = (*Signer)(nil)

// Signer is an ed25519 signer.
type Signer struct {
	pub  *[ed25519.PublicKeySize]byte
	priv *[ed25519.PrivateKeySize]byte
}

// NewSigner generates a new random ed25519 key.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Signer{pub: pub, priv: priv}, nil
}

// NewSignerFromKey returns a signer for a 64 byte ed25519 private key.
func NewSignerFromKey(key []byte) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key length")
	}
	var (
		priv [ed25519.PrivateKeySize]byte
		pub  [ed25519.PublicKeySize]byte
	)
	copy(priv[:], key)
	copy(pub[:], key[32:])
	return &Signer{pub: &pub, priv: &priv}, nil
}

func (s *Signer) SignatureType() currency.SignatureType {
	return currency.SignatureEd25519
}

func (s *Signer) PublicKey() []byte {
	return append([]byte(nil), s.pub[:]...)
}

func (s *Signer) Sign(msg []byte) ([]byte, error) {
	sig := ed25519.Sign(s.priv, msg)
	return sig[:], nil
}

// PrivateKey returns the 64 byte ed25519 private key.
func (s *Signer) PrivateKey() []byte {
	return append([]byte(nil), s.priv[:]...)
}

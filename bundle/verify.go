package bundle

import (
	"bytes"
	"crypto/sha256"
	"github.com/agl/ed25519"
	"github.com/btcsuite/btcd/btcec"
	"github.com/cpacia/bundlr/currency"
)

// Verify checks the signature of the transaction against its owner.
func (tx *Tx) Verify() error {
	msg := tx.signatureData()
	switch tx.sigType {
	case currency.SignatureEd25519:
		var (
			pub [ed25519.PublicKeySize]byte
			sig [ed25519.SignatureSize]byte
		)
		copy(pub[:], tx.owner)
		copy(sig[:], tx.signature)
		if !ed25519.Verify(&pub, msg, &sig) {
			return ErrBadSignature
		}
	case currency.SignatureSecp256k1:
		// secp256k1 signers sign the sha256 of the message with a compact
		// recoverable signature.
		digest := sha256.Sum256(msg)
		pub, _, err := btcec.RecoverCompact(btcec.S256(), tx.signature, digest[:])
		if err != nil {
			return ErrBadSignature
		}
		if !bytes.Equal(pub.SerializeCompressed(), tx.owner) {
			return ErrBadSignature
		}
	default:
		return ErrUnsupportedSignature
	}
	return nil
}

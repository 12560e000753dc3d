// Package bundle builds, serializes and verifies signed bundle
// transactions: an arbitrary payload plus ordered metadata tags, signed by
// a currency backend's signer.
//
// Wire layout, integers little endian:
//
//	signature type   uint16
//	signature        fixed length for the signature type
//	owner            fixed length public key for the signature type
//	target flag      uint8, followed by 32 bytes when 1
//	anchor flag      uint8, followed by 32 bytes when 1
//	tag count        uint64
//	tag bytes length uint64
//	tag bytes        deterministic CBOR array of [name, value] pairs
//	data             remaining bytes
package bundle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"github.com/cpacia/bundlr/currency"
	mh "github.com/multiformats/go-multihash"
)

var (
	// ErrMalformed is returned when parsing bytes that are not a valid
	// bundle transaction.
	ErrMalformed = errors.New("malformed bundle transaction")

	// ErrUnsupportedSignature is returned for an unknown signature type.
	ErrUnsupportedSignature = errors.New("unsupported signature type")

	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("invalid bundle signature")
)

// Tx is a signed bundle transaction.
type Tx struct {
	sigType   currency.SignatureType
	signature []byte
	owner     []byte
	target    []byte
	anchor    []byte
	tags      []Tag
	tagBytes  []byte
	data      []byte
}

// Option sets an optional field of a bundle transaction.
type Option func(tx *Tx)

// Target sets the 32 byte target of the transaction.
func Target(target [32]byte) Option {
	return func(tx *Tx) {
		tx.target = target[:]
	}
}

// Anchor sets the 32 byte anchor of the transaction.
func Anchor(anchor [32]byte) Option {
	return func(tx *Tx) {
		tx.anchor = anchor[:]
	}
}

// Create builds and signs a bundle transaction. Tag order is preserved and
// covered by the signature. No network or chain interaction takes place.
func Create(data []byte, tags []Tag, signer currency.Signer, opts ...Option) (*Tx, error) {
	if err := validateTags(tags); err != nil {
		return nil, err
	}
	tagBytes, err := encodeTags(tags)
	if err != nil {
		return nil, err
	}

	sigType := signer.SignatureType()
	owner := signer.PublicKey()
	if sigType.SignatureLength() == 0 {
		return nil, ErrUnsupportedSignature
	}
	if len(owner) != sigType.PublicKeyLength() {
		return nil, errors.New("signer public key has the wrong length")
	}

	tx := &Tx{
		sigType:  sigType,
		owner:    owner,
		tags:     append([]Tag(nil), tags...),
		tagBytes: tagBytes,
		data:     append([]byte(nil), data...),
	}
	for _, opt := range opts {
		opt(tx)
	}

	sig, err := signer.Sign(tx.signatureData())
	if err != nil {
		return nil, err
	}
	if len(sig) != sigType.SignatureLength() {
		return nil, errors.New("signer returned a signature of the wrong length")
	}
	tx.signature = sig
	return tx, nil
}

// SignatureType returns the signing scheme of the transaction.
func (tx *Tx) SignatureType() currency.SignatureType { return tx.sigType }

// Signature returns the transaction signature.
func (tx *Tx) Signature() []byte { return tx.signature }

// Owner returns the public key of the signer.
func (tx *Tx) Owner() []byte { return tx.owner }

// Target returns the target or nil if none is set.
func (tx *Tx) Target() []byte { return tx.target }

// Anchor returns the anchor or nil if none is set.
func (tx *Tx) Anchor() []byte { return tx.anchor }

// Tags returns the tags in their original order.
func (tx *Tx) Tags() []Tag { return append([]Tag(nil), tx.tags...) }

// Data returns the payload.
func (tx *Tx) Data() []byte { return tx.data }

// ID returns the base58 encoded sha2-256 multihash of the signature.
func (tx *Tx) ID() (string, error) {
	h, err := mh.Sum(tx.signature, mh.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return h.B58String(), nil
}

// Bytes serializes the transaction to its binary wire form.
func (tx *Tx) Bytes() []byte {
	var buf bytes.Buffer
	var u16 [2]byte
	var u64 [8]byte

	binary.LittleEndian.PutUint16(u16[:], uint16(tx.sigType))
	buf.Write(u16[:])
	buf.Write(tx.signature)
	buf.Write(tx.owner)
	writeOptional(&buf, tx.target)
	writeOptional(&buf, tx.anchor)

	binary.LittleEndian.PutUint64(u64[:], uint64(len(tx.tags)))
	buf.Write(u64[:])
	binary.LittleEndian.PutUint64(u64[:], uint64(len(tx.tagBytes)))
	buf.Write(u64[:])
	buf.Write(tx.tagBytes)
	buf.Write(tx.data)
	return buf.Bytes()
}

// Parse decodes a bundle transaction from its wire form. It does not
// verify the signature.
func Parse(b []byte) (*Tx, error) {
	r := bytes.NewReader(b)
	tx := new(Tx)

	var sigType uint16
	if err := binary.Read(r, binary.LittleEndian, &sigType); err != nil {
		return nil, ErrMalformed
	}
	tx.sigType = currency.SignatureType(sigType)
	if tx.sigType.SignatureLength() == 0 {
		return nil, ErrUnsupportedSignature
	}

	var err error
	if tx.signature, err = readN(r, tx.sigType.SignatureLength()); err != nil {
		return nil, err
	}
	if tx.owner, err = readN(r, tx.sigType.PublicKeyLength()); err != nil {
		return nil, err
	}
	if tx.target, err = readOptional(r); err != nil {
		return nil, err
	}
	if tx.anchor, err = readOptional(r); err != nil {
		return nil, err
	}

	var numTags, numTagBytes uint64
	if err := binary.Read(r, binary.LittleEndian, &numTags); err != nil {
		return nil, ErrMalformed
	}
	if err := binary.Read(r, binary.LittleEndian, &numTagBytes); err != nil {
		return nil, ErrMalformed
	}
	if numTags > MaxTags || numTagBytes > uint64(r.Len()) {
		return nil, ErrMalformed
	}
	if tx.tagBytes, err = readN(r, int(numTagBytes)); err != nil {
		return nil, err
	}
	if numTagBytes == 0 {
		tx.tagBytes = nil
	}
	if tx.tags, err = decodeTags(tx.tagBytes); err != nil {
		return nil, ErrMalformed
	}
	if uint64(len(tx.tags)) != numTags {
		return nil, ErrMalformed
	}
	if err := validateTags(tx.tags); err != nil {
		return nil, err
	}

	tx.data, err = readN(r, r.Len())
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// signatureData returns the message signed by the owner. Every field is
// length prefixed so that no two distinct transactions share a message.
func (tx *Tx) signatureData() []byte {
	h := sha256.New()
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(tx.sigType))
	for _, field := range [][]byte{
		[]byte("bundle"),
		u16[:],
		tx.owner,
		tx.target,
		tx.anchor,
		tx.tagBytes,
		tx.data,
	} {
		var l [8]byte
		binary.LittleEndian.PutUint64(l[:], uint64(len(field)))
		h.Write(l[:])
		h.Write(field)
	}
	return h.Sum(nil)
}

func writeOptional(buf *bytes.Buffer, field []byte) {
	if len(field) == 0 {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(field)
}

func readOptional(r *bytes.Reader) ([]byte, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return nil, ErrMalformed
	}
	switch flag {
	case 0:
		return nil, nil
	case 1:
		return readN(r, 32)
	default:
		return nil, ErrMalformed
	}
}

func readN(r *bytes.Reader, n int) ([]byte, error) {
	if n > r.Len() {
		return nil, ErrMalformed
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return nil, ErrMalformed
	}
	return b, nil
}

package models

import "math/big"

// TxID is the identifier a chain assigns to a submitted transaction.
type TxID string

// String returns the string representation of the ID.
func (t TxID) String() string {
	return string(t)
}

// Tx is a funding transaction on the underlying chain. It is created by a
// currency backend and given an ID when it is sent.
type Tx struct {
	ID          TxID
	From        string
	To          string
	Amount      *big.Int
	Fee         *big.Int
	BlockHeight uint64
	Pending     bool
	Confirmed   bool

	// Raw holds the backend specific serialization of the transaction,
	// if the backend builds it locally before broadcast.
	Raw []byte
}

// TxStatus is a point in time confirmation snapshot for a transaction.
type TxStatus struct {
	Confirmations uint64
	Height        uint64
	BlockHash     string
}

package events

import "math/big"

// Funding events are emitted by the relay client while it funds a relay
// balance. Subscribe with a pointer to the event type and filter a
// single funding with MatchField("TxID", id).

// FundingSent fires once the funding transaction has been broadcast.
type FundingSent struct {
	Chain  string
	TxID   string
	To     string
	Amount *big.Int
	Fee    *big.Int
}

// FundingConfirmationUpdate fires after every status query while the
// client waits for the funding transaction to confirm.
type FundingConfirmationUpdate struct {
	Chain         string
	TxID          string
	Confirmations uint64
	Required      uint64
}

// FundingConfirmed fires when the funding transaction reaches the
// required number of confirmations.
type FundingConfirmed struct {
	Chain         string
	TxID          string
	Confirmations uint64
}

// FundingCredited fires when the relay acknowledged the funding.
type FundingCredited struct {
	Chain string
	TxID  string
}

// FundingFailed fires when a funding stops at Step.
type FundingFailed struct {
	Chain string
	TxID  string
	Step  string
	Err   error
}

package models

import "time"

// FundingState is the progress of a funding transaction through the
// funding workflow.
type FundingState string

const (
	// FundingStateSent means the chain transaction was broadcast but is not
	// yet known to be confirmed.
	FundingStateSent FundingState = "sent"

	// FundingStateConfirmed means the chain transaction reached the backend's
	// confirmation threshold but the relay has not acknowledged it.
	FundingStateConfirmed FundingState = "confirmed"

	// FundingStateNotified means the relay acknowledged the transaction.
	FundingStateNotified FundingState = "notified"
)

// FundingRecord is the journal entry for a funding transaction. It allows
// a fund that was interrupted after broadcast to be resumed by re-notifying
// the relay.
type FundingRecord struct {
	TxID      TxID   `gorm:"primaryKey"`
	Chain     string `gorm:"index"`
	Relay     string
	To        string
	Amount    string
	Fee       string
	State     FundingState `gorm:"index"`
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

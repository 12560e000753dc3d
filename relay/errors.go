package relay

import (
	"errors"
	"fmt"
	"github.com/cpacia/bundlr/models"
)

// ErrNoDepositAddress is returned by Fund when the relay does not publish
// a deposit address for the client's chain.
var ErrNoDepositAddress = errors.New("relay has no deposit address for chain")

// RelayError is a failed request to the relay. Either the relay could not
// be reached or parsed, in which case Err is set, or it answered with a
// non-2xx status.
type RelayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("relay %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("relay %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// Fund steps.
const (
	StepResolveAddress = "resolve-address"
	StepFee            = "fee"
	StepCreate         = "create"
	StepSend           = "send"
	StepConfirm        = "confirm"
	StepNotify         = "notify"
)

// FundingError reports the step at which Fund stopped. Once the step is
// past send TxID is set and the chain transaction exists, so the funding
// can still be completed with NotifyFunding or ResumePending.
type FundingError struct {
	Step string
	TxID models.TxID
	Err  error
}

func (e *FundingError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("fund %s (tx %s): %s", e.Step, e.TxID, e.Err)
	}
	return fmt.Sprintf("fund %s: %s", e.Step, e.Err)
}

func (e *FundingError) Unwrap() error {
	return e.Err
}

// Sent returns whether a chain transaction was broadcast before the
// failure.
func (e *FundingError) Sent() bool {
	return e.TxID != ""
}

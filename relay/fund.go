package relay

import (
	"context"
	"fmt"
	"github.com/cpacia/bundlr/events"
	"github.com/cpacia/bundlr/models"
	"github.com/cpacia/bundlr/poll"
	"math/big"
)

// Fund sends amount from the backend to the relay's deposit address for
// the client's chain, waits for the transaction to reach the backend's
// confirmation threshold and then notifies the relay. It returns true if
// the relay acknowledged the funding.
//
// The multiplier scales the fee estimate. It is ignored for backends that
// do not need a fee.
//
// Failures are returned as a *FundingError. The relay is never notified
// about an unconfirmed transaction.
func (c *Client) Fund(ctx context.Context, amount *big.Int, multiplier float64) (bool, error) {
	chain := c.chain()

	info := c.PubInfo()
	to, ok := info.DepositAddress(chain)
	if !ok {
		return false, c.fundingFailed(StepResolveAddress, "", fmt.Errorf("%w %s", ErrNoDepositAddress, chain))
	}

	fee := big.NewInt(0)
	if c.backend.NeedsFee() {
		var err error
		fee, err = c.backend.Fee(ctx, amount, to, multiplier)
		if err != nil {
			return false, c.fundingFailed(StepFee, "", err)
		}
	}

	tx, err := c.backend.CreateTx(ctx, amount, to, fee)
	if err != nil {
		return false, c.fundingFailed(StepCreate, "", err)
	}

	sent, err := c.backend.SendTx(ctx, tx)
	if err != nil {
		return false, c.fundingFailed(StepSend, "", err)
	}
	log.Infof("Sent %s %s funding transaction %s to %s (fee %s)", amount, chain, sent.ID, to, fee)

	if c.journal != nil {
		rec := models.FundingRecord{
			TxID:   sent.ID,
			Chain:  chain,
			Relay:  c.url,
			To:     to,
			Amount: amount.String(),
			Fee:    fee.String(),
			State:  models.FundingStateSent,
		}
		if err := c.journal.Record(rec); err != nil {
			log.Errorf("Error journaling funding %s: %s", sent.ID, err)
		}
	}
	c.emit(&events.FundingSent{
		Chain:  chain,
		TxID:   sent.ID.String(),
		To:     to,
		Amount: new(big.Int).Set(amount),
		Fee:    new(big.Int).Set(fee),
	})

	return c.confirmAndNotify(ctx, sent.ID, models.FundingStateSent)
}

// ResumePending completes every journaled funding for the client's chain
// that the relay has not acknowledged yet. It returns the IDs of the
// fundings the relay acknowledged. Failed fundings stay in the journal.
func (c *Client) ResumePending(ctx context.Context) ([]models.TxID, error) {
	if c.journal == nil {
		return nil, fmt.Errorf("client has no journal")
	}
	recs, err := c.journal.Pending(c.chain())
	if err != nil {
		return nil, err
	}

	var (
		credited  []models.TxID
		attempted int
		failed    int
		lastErr   error
	)
	for _, rec := range recs {
		if ctx.Err() != nil {
			return credited, ctx.Err()
		}
		if rec.Relay != "" && rec.Relay != c.url {
			log.Debugf("Skipping funding %s for relay %s", rec.TxID, rec.Relay)
			continue
		}
		log.Infof("Resuming %s funding %s from state %s", rec.Chain, rec.TxID, rec.State)
		attempted++
		ok, err := c.confirmAndNotify(ctx, rec.TxID, rec.State)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		if ok {
			credited = append(credited, rec.TxID)
		}
	}
	if failed > 0 {
		return credited, fmt.Errorf("%d of %d pending fundings failed, last error: %w", failed, attempted, lastErr)
	}
	return credited, nil
}

// confirmAndNotify runs the steps of a funding after broadcast, starting
// from the given journal state.
func (c *Client) confirmAndNotify(ctx context.Context, txID models.TxID, state models.FundingState) (bool, error) {
	chain := c.chain()

	if state == models.FundingStateSent {
		required := poll.EffectivePolicy(c.backend, c.pollOpts...).MinConfirmations
		opts := append([]poll.Option{}, c.pollOpts...)
		opts = append(opts,
			poll.OnStatus(func(attempt int, status models.TxStatus, err error) {
				if err != nil {
					return
				}
				c.emit(&events.FundingConfirmationUpdate{
					Chain:         chain,
					TxID:          txID.String(),
					Confirmations: status.Confirmations,
					Required:      required,
				})
			}),
		)
		if err := poll.AwaitConfirmation(ctx, txID, c.backend, opts...); err != nil {
			c.markState(txID, models.FundingStateSent, err)
			return false, c.fundingFailed(StepConfirm, txID, err)
		}
		c.markState(txID, models.FundingStateConfirmed, nil)
		c.emit(&events.FundingConfirmed{Chain: chain, TxID: txID.String(), Confirmations: required})
	}

	ok, err := c.NotifyFunding(ctx, txID)
	if err != nil {
		c.markState(txID, models.FundingStateConfirmed, err)
		return false, c.fundingFailed(StepNotify, txID, err)
	}
	c.markState(txID, models.FundingStateNotified, nil)
	c.emit(&events.FundingCredited{Chain: chain, TxID: txID.String()})
	return ok, nil
}

func (c *Client) fundingFailed(step string, txID models.TxID, err error) error {
	log.Errorf("Funding failed at %s: %s", step, err)
	c.emit(&events.FundingFailed{Chain: c.chain(), TxID: txID.String(), Step: step, Err: err})
	return &FundingError{Step: step, TxID: txID, Err: err}
}

func (c *Client) markState(txID models.TxID, state models.FundingState, lastErr error) {
	if c.journal == nil {
		return
	}
	if err := c.journal.MarkState(txID, state, lastErr); err != nil {
		log.Warningf("Error updating journal for %s: %s", txID, err)
	}
}

func (c *Client) emit(event interface{}) {
	if c.bus != nil {
		c.bus.Emit(event)
	}
}

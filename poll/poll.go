// Package poll waits for a chain transaction to reach its backend's
// confirmation threshold.
package poll

import (
	"context"
	"errors"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/models"
	"github.com/op/go-logging"
	pkgerrors "github.com/pkg/errors"
	"time"
)

var log = logging.MustGetLogger("POLL")

// ErrConfirmationTimeout is returned when a transaction was reported as not
// found more times in a row than the policy allows.
var ErrConfirmationTimeout = errors.New("transaction not found before the confirmation timeout")

// MinPollInterval is used in place of a zero or negative poll interval.
const MinPollInterval = 100 * time.Millisecond

// StatusQuerier is the part of a currency backend the poller needs.
type StatusQuerier interface {
	TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error)
	ConfirmationPolicy() currency.ConfirmationPolicy
}

// Option overrides a value of the backend's confirmation policy.
type Option func(o *options)

type options struct {
	policy   currency.ConfirmationPolicy
	onStatus func(attempt int, status models.TxStatus, err error)
}

// Interval sets the delay between two status queries.
func Interval(d time.Duration) Option {
	return func(o *options) {
		o.policy.PollInterval = d
	}
}

// MinConfirmations sets the confirmation threshold.
func MinConfirmations(n uint64) Option {
	return func(o *options) {
		o.policy.MinConfirmations = n
	}
}

// MaxNotFound sets how many consecutive not found results are tolerated.
// Zero removes the limit, leaving the context as the only ceiling.
func MaxNotFound(n int) Option {
	return func(o *options) {
		o.policy.MaxNotFound = n
	}
}

// OnStatus registers a hook called after every status query.
func OnStatus(fn func(attempt int, status models.TxStatus, err error)) Option {
	return func(o *options) {
		o.onStatus = fn
	}
}

// EffectivePolicy returns the backend's confirmation policy with opts
// applied.
func EffectivePolicy(backend StatusQuerier, opts ...Option) currency.ConfirmationPolicy {
	return resolve(backend, opts).policy
}

func resolve(backend StatusQuerier, opts []Option) options {
	o := options{policy: backend.ConfirmationPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy.PollInterval <= 0 {
		o.policy.PollInterval = MinPollInterval
	}
	return o
}

// AwaitConfirmation blocks until the transaction has at least the required
// number of confirmations. It returns nil once confirmed, the chain error if
// the backend reports a fatal failure, ErrConfirmationTimeout if the
// transaction is not found too many times in a row, or the context error if
// ctx is done first.
func AwaitConfirmation(ctx context.Context, id models.TxID, backend StatusQuerier, opts ...Option) error {
	o := resolve(backend, opts)

	var (
		timer    *time.Timer
		notFound int
	)
	for attempt := 1; ; attempt++ {
		status, err := backend.TxStatus(ctx, id)
		if o.onStatus != nil {
			o.onStatus(attempt, status, err)
		}

		switch {
		case err == nil:
			notFound = 0
			if status.Confirmations >= o.policy.MinConfirmations {
				log.Debugf("Transaction %s confirmed with %d confirmations", id, status.Confirmations)
				return nil
			}
			log.Debugf("Transaction %s has %d/%d confirmations", id, status.Confirmations, o.policy.MinConfirmations)
		case currency.IsNotFound(err):
			notFound++
			if o.policy.MaxNotFound > 0 && notFound >= o.policy.MaxNotFound {
				return pkgerrors.Wrapf(ErrConfirmationTimeout, "tx %s", id)
			}
		case currency.IsTransient(err):
			log.Warningf("Status query for %s failed, retrying: %s", id, err)
		default:
			return err
		}

		if timer == nil {
			timer = time.NewTimer(o.policy.PollInterval)
			defer timer.Stop()
		} else {
			timer.Reset(o.policy.PollInterval)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return pkgerrors.Wrapf(ctx.Err(), "awaiting confirmation of %s", id)
		}
	}
}

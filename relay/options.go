package relay

import (
	"github.com/cpacia/bundlr/events"
	"github.com/cpacia/bundlr/models"
	"github.com/cpacia/bundlr/poll"
	"net/http"
)

// Journal persists funding progress. *repo.Journal implements it.
type Journal interface {
	Record(rec models.FundingRecord) error
	MarkState(txID models.TxID, state models.FundingState, lastErr error) error
	Pending(chain string) ([]models.FundingRecord, error)
}

// Option configures a Client.
type Option func(c *Client)

// WithHTTPClient sets the client used for relay requests. The default
// client honours the proxy set in proxyclient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithJournal records the progress of every fund in j.
func WithJournal(j Journal) Option {
	return func(c *Client) {
		c.journal = j
	}
}

// WithEventBus emits funding events on bus.
func WithEventBus(bus events.Bus) Option {
	return func(c *Client) {
		c.bus = bus
	}
}

// WithPollOptions overrides the backend's confirmation policy while
// waiting for funding transactions.
func WithPollOptions(opts ...poll.Option) Option {
	return func(c *Client) {
		c.pollOpts = append(c.pollOpts, opts...)
	}
}

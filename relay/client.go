// Package relay is a client for a bundlr relay. It uploads signed bundle
// transactions and funds the caller's relay balance from a currency
// backend.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/cpacia/bundlr/bundle"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/events"
	"github.com/cpacia/bundlr/models"
	"github.com/cpacia/bundlr/poll"
	"github.com/cpacia/bundlr/version"
	"github.com/cpacia/proxyclient"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var log = logging.MustGetLogger("RELAY")

// maxResponseSize bounds how much of a relay response is read.
const maxResponseSize = 1 << 20

// Client talks to a single relay on behalf of a single currency backend.
// It is safe for concurrent use.
type Client struct {
	url      string
	backend  currency.Currency
	client   *http.Client
	journal  Journal
	bus      events.Bus
	pollOpts []poll.Option

	mtx  sync.RWMutex
	info models.PubInfo
}

// New returns a client for the relay at relayURL. The relay's /info is
// fetched once. If it cannot be fetched or parsed New fails.
func New(ctx context.Context, relayURL string, backend currency.Currency, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, errors.New("currency backend is nil")
	}
	u, err := url.Parse(relayURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid relay url %q", relayURL)
	}

	c := &Client{
		url:     strings.TrimSuffix(relayURL, "/"),
		backend: backend,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = proxyclient.NewHttpClient()
		c.client.Timeout = time.Minute
	}

	info, err := c.fetchInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.info = info
	log.Debugf("Connected to relay %s version %s", c.url, info.Version)
	return c, nil
}

// URL returns the relay URL.
func (c *Client) URL() string {
	return c.url
}

// Currency returns the backend the client funds and signs with.
func (c *Client) Currency() currency.Currency {
	return c.backend
}

// PubInfo returns the relay metadata fetched at construction or by the
// last RefreshPubInfo.
func (c *Client) PubInfo() models.PubInfo {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	info := c.info
	info.Addresses = make(map[string]string, len(c.info.Addresses))
	for k, v := range c.info.Addresses {
		info.Addresses[k] = v
	}
	return info
}

// RefreshPubInfo fetches /info again. On error the previous metadata is
// kept.
func (c *Client) RefreshPubInfo(ctx context.Context) error {
	info, err := c.fetchInfo(ctx)
	if err != nil {
		return err
	}
	c.mtx.Lock()
	c.info = info
	c.mtx.Unlock()
	return nil
}

// CreateTransactionWithTags builds a bundle transaction signed by the
// backend's signer. Tag order is preserved.
func (c *Client) CreateTransactionWithTags(data []byte, tags []bundle.Tag) (*bundle.Tx, error) {
	return bundle.Create(data, tags, c.backend.Signer())
}

// SendTransaction posts a signed bundle transaction to the relay and
// returns its JSON acknowledgement. The request is not retried.
func (c *Client) SendTransaction(ctx context.Context, tx *bundle.Tx) (json.RawMessage, error) {
	if tx == nil {
		return nil, errors.New("transaction is nil")
	}
	const op = "send transaction"
	body, err := c.do(ctx, op, http.MethodPost, "/tx/"+c.chain(), "application/octet-stream", bytes.NewReader(tx.Bytes()))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &RelayError{Op: op, StatusCode: http.StatusOK, Body: string(body), Err: errors.New("malformed JSON response")}
	}
	return json.RawMessage(body), nil
}

// GetBalance returns the relay balance held for address on the client's
// chain.
func (c *Client) GetBalance(ctx context.Context, address string) (models.Balance, error) {
	const op = "get balance"
	path := "/account/balance/" + c.chain() + "?address=" + url.QueryEscape(address)
	body, err := c.do(ctx, op, http.MethodGet, path, "", nil)
	if err != nil {
		return models.Balance{}, err
	}

	var resp struct {
		Balance json.RawMessage `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Balance{}, &RelayError{Op: op, StatusCode: http.StatusOK, Body: string(body), Err: err}
	}

	// Relays send the balance as a decimal string. A bare JSON integer is
	// accepted as well.
	raw := string(resp.Balance)
	var s string
	if err := json.Unmarshal(resp.Balance, &s); err == nil {
		raw = s
	}
	bal, err := models.ParseBalance(raw)
	if err != nil {
		return models.Balance{}, &RelayError{Op: op, StatusCode: http.StatusOK, Body: string(body), Err: errors.Wrapf(err, "%q", raw)}
	}
	return bal, nil
}

// NotifyFunding tells the relay about a confirmed funding transaction. It
// returns true if the relay acknowledged it.
func (c *Client) NotifyFunding(ctx context.Context, txID models.TxID) (bool, error) {
	if txID == "" {
		return false, errors.New("transaction ID is empty")
	}
	b, err := json.Marshal(struct {
		TxID string `json:"tx_id"`
	}{txID.String()})
	if err != nil {
		return false, err
	}
	if _, err := c.do(ctx, "notify funding", http.MethodPost, "/account/balance/"+c.chain(), "application/json", bytes.NewReader(b)); err != nil {
		return false, err
	}
	log.Infof("Relay acknowledged %s funding %s", c.chain(), txID)
	return true, nil
}

func (c *Client) chain() string {
	return c.backend.Type().String()
}

func (c *Client) fetchInfo(ctx context.Context) (models.PubInfo, error) {
	const op = "info"
	var info models.PubInfo
	body, err := c.do(ctx, op, http.MethodGet, "/info", "", nil)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return info, &RelayError{Op: op, StatusCode: http.StatusOK, Body: string(body), Err: err}
	}
	// Address lookups are by lower case chain name.
	addrs := make(map[string]string, len(info.Addresses))
	for k, v := range info.Addresses {
		addrs[strings.ToLower(k)] = v
	}
	info.Addresses = addrs
	return info, nil
}

// do performs a single request against the relay and returns the response
// body. Transport failures and non-2xx responses are *RelayError.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequest(method, c.url+path, body)
	if err != nil {
		return nil, &RelayError{Op: op, Err: err}
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", version.UserAgent+"/"+version.String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RelayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &RelayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RelayError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return b, nil
}

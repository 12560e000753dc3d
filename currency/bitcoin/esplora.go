package bitcoin

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/cpacia/bundlr/currency"
	"github.com/pkg/errors"
	"io"
	"io/ioutil"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// esplora is a thin client for the subset of the Esplora REST API used by
// the backend.
type esplora struct {
	url    string
	client *http.Client
}

type utxo struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Value  int64    `json:"value"`
	Status txStatus `json:"status"`
}

type txStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height"`
	BlockHash   string `json:"block_hash"`
}

func (e *esplora) do(ctx context.Context, op, method, path string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequest(method, e.url+path, body)
	if err != nil {
		return nil, 0, currency.NewChainError(currency.KindInvalid, op, err)
	}
	req = req.WithContext(ctx)
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, currency.NewChainError(currency.KindUnavailable, op, err)
	}
	defer resp.Body.Close()

	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, currency.NewChainError(currency.KindUnavailable, op, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, resp.StatusCode, currency.NewChainError(currency.KindUnavailable, op,
			fmt.Errorf("esplora returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}
	return b, resp.StatusCode, nil
}

func (e *esplora) utxos(ctx context.Context, addr string) ([]utxo, error) {
	b, code, err := e.do(ctx, "utxos", http.MethodGet, "/address/"+addr+"/utxo", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, currency.NewChainError(currency.KindInvalid, "utxos", fmt.Errorf("esplora returned %d", code))
	}
	var utxos []utxo
	if err := json.Unmarshal(b, &utxos); err != nil {
		return nil, currency.NewChainError(currency.KindUnavailable, "utxos", err)
	}
	// Largest first, ties broken by outpoint so coin selection is stable.
	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].Value != utxos[j].Value {
			return utxos[i].Value > utxos[j].Value
		}
		if utxos[i].TxID != utxos[j].TxID {
			return utxos[i].TxID < utxos[j].TxID
		}
		return utxos[i].Vout < utxos[j].Vout
	})
	return utxos, nil
}

// feeRate returns the estimated sat/vbyte rate to confirm within target
// blocks. If the target is missing the next slower estimate is used.
func (e *esplora) feeRate(ctx context.Context, target int) (float64, error) {
	b, code, err := e.do(ctx, "fee", http.MethodGet, "/fee-estimates", nil)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK {
		return 0, currency.NewChainError(currency.KindUnavailable, "fee", fmt.Errorf("esplora returned %d", code))
	}
	estimates := make(map[string]float64)
	if err := json.Unmarshal(b, &estimates); err != nil {
		return 0, currency.NewChainError(currency.KindUnavailable, "fee", err)
	}

	var targets []int
	for k := range estimates {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		targets = append(targets, n)
	}
	sort.Ints(targets)
	for _, n := range targets {
		if n >= target {
			return estimates[strconv.Itoa(n)], nil
		}
	}
	if len(targets) > 0 {
		return estimates[strconv.Itoa(targets[len(targets)-1])], nil
	}
	return 0, currency.NewChainError(currency.KindUnavailable, "fee", errors.New("no fee estimates"))
}

func (e *esplora) broadcast(ctx context.Context, rawHex string) (string, error) {
	b, code, err := e.do(ctx, "send", http.MethodPost, "/tx", strings.NewReader(rawHex))
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", currency.NewChainError(currency.KindRejected, "send", errors.New(strings.TrimSpace(string(b))))
	}
	return strings.TrimSpace(string(b)), nil
}

func (e *esplora) status(ctx context.Context, txid string) (txStatus, error) {
	var status txStatus
	b, code, err := e.do(ctx, "status", http.MethodGet, "/tx/"+txid+"/status", nil)
	if err != nil {
		return status, err
	}
	switch code {
	case http.StatusOK:
	case http.StatusNotFound:
		return status, currency.NewChainError(currency.KindNotFound, "status", errors.Errorf("transaction %s not found", txid))
	case http.StatusBadRequest:
		return status, currency.NewChainError(currency.KindInvalid, "status", errors.New(strings.TrimSpace(string(b))))
	default:
		return status, currency.NewChainError(currency.KindUnavailable, "status", fmt.Errorf("esplora returned %d", code))
	}
	if err := json.Unmarshal(b, &status); err != nil {
		return status, currency.NewChainError(currency.KindUnavailable, "status", err)
	}
	return status, nil
}

func (e *esplora) tipHeight(ctx context.Context) (uint64, error) {
	b, code, err := e.do(ctx, "tip", http.MethodGet, "/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}
	if code != http.StatusOK {
		return 0, currency.NewChainError(currency.KindUnavailable, "tip", fmt.Errorf("esplora returned %d", code))
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, currency.NewChainError(currency.KindUnavailable, "tip", err)
	}
	return height, nil
}

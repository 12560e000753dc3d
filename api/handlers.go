package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cpacia/bundlr/bundle"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/models"
	"github.com/gorilla/mux"
	"io"
	"io/ioutil"
	"math/big"
	"net/http"
)

// maxUploadSize bounds the size of an uploaded bundle.
const maxUploadSize = 10 << 20

var errUnsupportedChain = errors.New("unsupported chain")

type upload struct {
	id    string
	owner string
	tags  []bundle.Tag
	size  int
}

type tagResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type txResponse struct {
	ID    string        `json:"id"`
	Owner string        `json:"owner"`
	Size  int           `json:"size"`
	Tags  []tagResponse `json:"tags,omitempty"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type fundResponse struct {
	TxID      string `json:"tx_id"`
	Confirmed bool   `json:"confirmed"`
	Balance   string `json:"balance"`
}

func (g *Gateway) handleGETInfo(w http.ResponseWriter, r *http.Request) {
	sanitizedJSONResponse(w, models.PubInfo{
		Version: g.config.Version,
		Gateway: g.config.Gateway,
		Addresses: map[string]string{
			currency.ChainMock.String(): g.DepositAddress(),
		},
	})
}

func (g *Gateway) handlePOSTTx(w http.ResponseWriter, r *http.Request) {
	if err := checkChain(r); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}

	b, err := ioutil.ReadAll(io.LimitReader(r.Body, maxUploadSize+1))
	if err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	if len(b) > maxUploadSize {
		http.Error(w, wrapError(fmt.Errorf("bundle larger than %d bytes", maxUploadSize)), http.StatusRequestEntityTooLarge)
		return
	}

	tx, err := bundle.Parse(b)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	if tx.SignatureType() != currency.SignatureEd25519 {
		http.Error(w, wrapError(bundle.ErrUnsupportedSignature), http.StatusBadRequest)
		return
	}
	if err := tx.Verify(); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	id, err := tx.ID()
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}

	owner := hex.EncodeToString(tx.Owner())
	cost := new(big.Int).Mul(big.NewInt(g.config.BytePrice), big.NewInt(int64(len(b))))

	g.mtx.Lock()
	bal := g.balance(owner)
	if bal.Cmp(cost) < 0 {
		g.mtx.Unlock()
		http.Error(w, wrapError(fmt.Errorf("balance %s is less than the upload cost %s", bal, cost)), http.StatusPaymentRequired)
		return
	}
	bal.Sub(bal, cost)
	up := &upload{
		id:    id,
		owner: owner,
		tags:  tx.Tags(),
		size:  len(b),
	}
	g.uploads[id] = up
	g.mtx.Unlock()

	log.Infof("Accepted bundle %s from %s (%d bytes)", id, owner, len(b))
	sanitizedJSONResponse(w, up.response())
}

func (g *Gateway) handleGETTx(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	g.mtx.Lock()
	up, ok := g.uploads[id]
	g.mtx.Unlock()

	if !ok {
		http.Error(w, wrapError(errors.New("transaction not found")), http.StatusNotFound)
		return
	}
	sanitizedJSONResponse(w, up.response())
}

func (g *Gateway) handleGETBalance(w http.ResponseWriter, r *http.Request) {
	if err := checkChain(r); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		http.Error(w, wrapError(errors.New("address is required")), http.StatusBadRequest)
		return
	}

	bal := big.NewInt(0)
	g.mtx.Lock()
	if b, ok := g.balances[address]; ok {
		bal.Set(b)
	}
	g.mtx.Unlock()

	sanitizedJSONResponse(w, balanceResponse{Balance: bal.String()})
}

// handlePOSTBalance credits the sender of a confirmed deposit. Repeated
// notifications for the same transaction are acknowledged without
// crediting again.
func (g *Gateway) handlePOSTBalance(w http.ResponseWriter, r *http.Request) {
	if err := checkChain(r); err != nil {
		http.Error(w, wrapError(err), http.StatusBadRequest)
		return
	}
	var req struct {
		TxID string `json:"tx_id"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil || req.TxID == "" {
		http.Error(w, wrapError(errors.New("tx_id is required")), http.StatusBadRequest)
		return
	}
	txID := models.TxID(req.TxID)

	tx, err := g.network.Transaction(txID)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusNotFound)
		return
	}
	if tx.To != g.DepositAddress() {
		http.Error(w, wrapError(errors.New("transaction does not pay the relay")), http.StatusBadRequest)
		return
	}
	status, err := g.network.Status(txID)
	if err != nil {
		http.Error(w, wrapError(err), http.StatusInternalServerError)
		return
	}
	if status.Confirmations == 0 {
		http.Error(w, wrapError(errors.New("transaction is not confirmed")), http.StatusBadRequest)
		return
	}

	g.mtx.Lock()
	bal := g.balance(tx.From)
	if !g.credited[txID] {
		g.credited[txID] = true
		bal.Add(bal, tx.Amount)
		log.Infof("Credited %s with %s from %s", tx.From, tx.Amount, txID)
	}
	resp := fundResponse{
		TxID:      txID.String(),
		Confirmed: true,
		Balance:   bal.String(),
	}
	g.mtx.Unlock()

	sanitizedJSONResponse(w, resp)
}

// balance returns the mutable balance of address. The caller must hold
// the lock.
func (g *Gateway) balance(address string) *big.Int {
	bal, ok := g.balances[address]
	if !ok {
		bal = big.NewInt(0)
		g.balances[address] = bal
	}
	return bal
}

func (u *upload) response() txResponse {
	resp := txResponse{
		ID:    u.id,
		Owner: u.owner,
		Size:  u.size,
	}
	for _, tag := range u.tags {
		resp.Tags = append(resp.Tags, tagResponse{Name: tag.Name, Value: tag.Value})
	}
	return resp
}

func checkChain(r *http.Request) error {
	chain := mux.Vars(r)["chain"]
	if chain != currency.ChainMock.String() {
		return fmt.Errorf("%w %s", errUnsupportedChain, chain)
	}
	return nil
}

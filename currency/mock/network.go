// Package mock implements an in-memory chain and a zero-fee currency
// backend on top of it. It is used by the dev relay and by tests.
package mock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/models"
	"github.com/op/go-logging"
	"math/big"
	"sync"
	"time"
)

var log = logging.MustGetLogger("MOCK")

type mockTx struct {
	tx     models.Tx
	height uint64
}

// Network is an in-memory chain shared by any number of mock currencies.
// Transactions sit in the mempool until GenerateBlock is called.
type Network struct {
	mtx sync.RWMutex

	height   uint64
	blocks   map[uint64]string
	txs      map[models.TxID]*mockTx
	balances map[string]*big.Int
}

// NewNetwork returns an empty network at height zero.
func NewNetwork() *Network {
	return &Network{
		blocks:   make(map[uint64]string),
		txs:      make(map[models.TxID]*mockTx),
		balances: make(map[string]*big.Int),
	}
}

// GenerateBlock mines a block containing every mempool transaction and
// returns the new height.
func (n *Network) GenerateBlock() uint64 {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.height++
	n.blocks[n.height] = randomHex(32)

	for _, mtx := range n.txs {
		if mtx.height == 0 {
			mtx.height = n.height
			mtx.tx.BlockHeight = n.height
			mtx.tx.Pending = false
			mtx.tx.Confirmed = true
		}
	}
	return n.height
}

// Mine generates a block every interval until the context is done.
func (n *Network) Mine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			height := n.GenerateBlock()
			log.Debugf("Mined block %d", height)
		case <-ctx.Done():
			return
		}
	}
}

// GenerateToAddress creates coins out of thin air for the address.
func (n *Network) GenerateToAddress(addr string, amount *big.Int) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.credit(addr, amount)
}

// Height returns the current chain height.
func (n *Network) Height() uint64 {
	n.mtx.RLock()
	defer n.mtx.RUnlock()

	return n.height
}

// Balance returns the spendable balance of the address.
func (n *Network) Balance(addr string) *big.Int {
	n.mtx.RLock()
	defer n.mtx.RUnlock()

	bal, ok := n.balances[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// Transaction returns a copy of the transaction with the given ID.
func (n *Network) Transaction(id models.TxID) (models.Tx, error) {
	n.mtx.RLock()
	defer n.mtx.RUnlock()

	mtx, ok := n.txs[id]
	if !ok {
		return models.Tx{}, currency.NewChainError(currency.KindNotFound, "transaction", nil)
	}
	return mtx.tx, nil
}

// Status returns the confirmation status of the transaction.
func (n *Network) Status(id models.TxID) (models.TxStatus, error) {
	n.mtx.RLock()
	defer n.mtx.RUnlock()

	mtx, ok := n.txs[id]
	if !ok {
		return models.TxStatus{}, currency.NewChainError(currency.KindNotFound, "status", nil)
	}
	if mtx.height == 0 {
		return models.TxStatus{}, nil
	}
	return models.TxStatus{
		Confirmations: n.height - mtx.height + 1,
		Height:        mtx.height,
		BlockHash:     n.blocks[mtx.height],
	}, nil
}

func (n *Network) broadcast(tx models.Tx) (models.Tx, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	total := new(big.Int).Add(tx.Amount, tx.Fee)
	bal, ok := n.balances[tx.From]
	if !ok || bal.Cmp(total) < 0 {
		return tx, currency.NewChainError(currency.KindInsufficientFunds, "send", errors.New("balance too low"))
	}
	bal.Sub(bal, total)
	n.credit(tx.To, tx.Amount)

	tx.ID = models.TxID(randomHex(32))
	tx.Pending = true
	n.txs[tx.ID] = &mockTx{tx: tx}
	return tx, nil
}

func (n *Network) credit(addr string, amount *big.Int) {
	bal, ok := n.balances[addr]
	if !ok {
		bal = big.NewInt(0)
		n.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}

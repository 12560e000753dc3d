package wallet

import (
	"context"
	"errors"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/currency/mock"
	iwallet "github.com/cpacia/wallet-interface"
	"math/big"
	"testing"
	"time"
)

type fakeDBTx struct {
	committed  bool
	rolledBack bool
}

func (tx *fakeDBTx) Commit() error {
	tx.committed = true
	return nil
}

func (tx *fakeDBTx) Rollback() error {
	tx.rolledBack = true
	return nil
}

// fakeWallet implements the parts of iwallet.Wallet used by the adapter.
// Calling anything else panics on the nil embedded interface.
type fakeWallet struct {
	iwallet.Wallet

	height    uint64
	txs       map[iwallet.TransactionID]iwallet.Transaction
	spendErr  error
	lastDBTx  *fakeDBTx
	lastLevel iwallet.FeeLevel
	lastTo    iwallet.Address
	opened    bool
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		height: 100,
		txs:    make(map[iwallet.TransactionID]iwallet.Transaction),
	}
}

func (w *fakeWallet) OpenWallet() error {
	w.opened = true
	return nil
}

func (w *fakeWallet) CloseWallet() error {
	w.opened = false
	return nil
}

func (w *fakeWallet) Begin() (iwallet.Tx, error) {
	w.lastDBTx = &fakeDBTx{}
	return w.lastDBTx, nil
}

func (w *fakeWallet) BlockchainInfo() (iwallet.BlockInfo, error) {
	return iwallet.BlockInfo{Height: w.height}, nil
}

func (w *fakeWallet) CurrentAddress() (iwallet.Address, error) {
	return iwallet.NewAddress("fromaddr", CtTestnetBitcoin), nil
}

func (w *fakeWallet) GetTransaction(id iwallet.TransactionID) (iwallet.Transaction, error) {
	tx, ok := w.txs[id]
	if !ok {
		return tx, errors.New("not found")
	}
	return tx, nil
}

func (w *fakeWallet) EstimateSpendFee(amount iwallet.Amount, feeLevel iwallet.FeeLevel) (iwallet.Amount, error) {
	switch feeLevel {
	case iwallet.FlEconomic:
		return iwallet.NewAmount(250), nil
	case iwallet.FlPriority:
		return iwallet.NewAmount(750), nil
	default:
		return iwallet.NewAmount(500), nil
	}
}

func (w *fakeWallet) Spend(dbtx iwallet.Tx, to iwallet.Address, amt iwallet.Amount, feeLevel iwallet.FeeLevel) (iwallet.TransactionID, error) {
	if w.spendErr != nil {
		return "", w.spendErr
	}
	w.lastLevel = feeLevel
	w.lastTo = to
	return iwallet.TransactionID("txid1"), nil
}

func newTestCurrency(t *testing.T, w iwallet.Wallet) *Currency {
	signer, err := mock.NewSigner()
	if err != nil {
		t.Fatal(err)
	}
	policy := currency.ConfirmationPolicy{MinConfirmations: 2, PollInterval: time.Millisecond}
	return NewCurrency(w, CtTestnetBitcoin, signer, policy)
}

func TestCurrency_Type(t *testing.T) {
	c := newTestCurrency(t, newFakeWallet())
	if c.Type() != currency.ChainBitcoinTestnet {
		t.Errorf("Expected %s, got %s", currency.ChainBitcoinTestnet, c.Type())
	}
	if !c.NeedsFee() {
		t.Error("Expected wallet backend to need a fee")
	}
}

func TestChainTypeForCoin(t *testing.T) {
	tests := []struct {
		coin     iwallet.CoinType
		expected currency.ChainType
	}{
		{iwallet.CtBitcoin, currency.ChainBitcoin},
		{iwallet.CoinType("TBTC"), currency.ChainBitcoinTestnet},
		{iwallet.CtMock, currency.ChainMock},
		{iwallet.CoinType("tmck"), currency.ChainMock},
		{iwallet.CtLitecoin, currency.ChainType("ltc")},
	}
	for _, test := range tests {
		if ct := ChainTypeForCoin(test.coin); ct != test.expected {
			t.Errorf("%s: expected %s, got %s", test.coin, test.expected, ct)
		}
	}
}

func TestCurrency_Fee(t *testing.T) {
	c := newTestCurrency(t, newFakeWallet())

	tests := []struct {
		multiplier float64
		expected   int64
	}{
		{1, 500},
		{0, 500},
		{1.5, 750},
		{1.001, 501},
	}
	for i, test := range tests {
		fee, err := c.Fee(context.Background(), big.NewInt(10000), "addr", test.multiplier)
		if err != nil {
			t.Fatal(err)
		}
		if fee.Cmp(big.NewInt(test.expected)) != 0 {
			t.Errorf("Test %d: expected fee %d, got %s", i, test.expected, fee)
		}
	}
}

func TestCurrency_CreateAndSend(t *testing.T) {
	w := newFakeWallet()
	c := newTestCurrency(t, w)

	if _, err := c.CreateTx(context.Background(), big.NewInt(0), "to", nil); err == nil {
		t.Error("Expected error for zero amount")
	}
	var constructionErr *currency.ConstructionError
	if _, err := c.CreateTx(context.Background(), big.NewInt(10), "", nil); !errors.As(err, &constructionErr) {
		t.Errorf("Expected construction error, got %v", err)
	}

	tx, err := c.CreateTx(context.Background(), big.NewInt(10000), "toaddr", big.NewInt(740))
	if err != nil {
		t.Fatal(err)
	}
	if tx.From != "fromaddr" {
		t.Errorf("Expected from fromaddr, got %s", tx.From)
	}

	sent, err := c.SendTx(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if sent.ID != "txid1" {
		t.Errorf("Expected id txid1, got %s", sent.ID)
	}
	if !w.lastDBTx.committed {
		t.Error("Wallet transaction not committed")
	}
	if w.lastLevel != iwallet.FlPriority {
		t.Errorf("Expected priority fee level, got %d", w.lastLevel)
	}
	if w.lastTo.String() != "toaddr" {
		t.Errorf("Expected recipient toaddr, got %s", w.lastTo.String())
	}

	w.spendErr = errors.New("insufficient funds")
	_, err = c.SendTx(context.Background(), tx)
	var chainErr *currency.ChainError
	if !errors.As(err, &chainErr) || chainErr.Kind != currency.KindRejected {
		t.Errorf("Expected rejected error, got %v", err)
	}
	if !w.lastDBTx.rolledBack {
		t.Error("Wallet transaction not rolled back")
	}
}

func TestCurrency_TxStatus(t *testing.T) {
	w := newFakeWallet()
	c := newTestCurrency(t, w)

	if _, err := c.TxStatus(context.Background(), "missing"); !currency.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}

	w.txs["pending"] = iwallet.Transaction{ID: "pending"}
	status, err := c.TxStatus(context.Background(), "pending")
	if err != nil {
		t.Fatal(err)
	}
	if status.Confirmations != 0 {
		t.Errorf("Expected 0 confirmations, got %d", status.Confirmations)
	}

	w.txs["mined"] = iwallet.Transaction{ID: "mined", Height: 99}
	status, err = c.TxStatus(context.Background(), "mined")
	if err != nil {
		t.Fatal(err)
	}
	if status.Confirmations != 2 {
		t.Errorf("Expected 2 confirmations, got %d", status.Confirmations)
	}
}

func TestMultiwallet(t *testing.T) {
	btc := newFakeWallet()
	mw := Multiwallet{
		CtTestnetBitcoin: btc,
		CtTestnetMock:    newFakeWallet(),
	}
	if err := mw.Start(); err != nil {
		t.Fatal(err)
	}
	if !btc.opened {
		t.Error("Wallet not opened")
	}

	w, err := mw.WalletForCurrencyCode("btc")
	if err != nil {
		t.Fatal(err)
	}
	if fw, ok := w.(*fakeWallet); !ok || fw != btc {
		t.Error("Returned the wrong wallet")
	}
	if _, err := mw.WalletForCurrencyCode("ltc"); err != ErrUnsupportedCoin {
		t.Errorf("Expected ErrUnsupportedCoin, got %v", err)
	}

	signer, err := mock.NewSigner()
	if err != nil {
		t.Fatal(err)
	}
	reg := mw.Registry(map[iwallet.CoinType]currency.Signer{CtTestnetBitcoin: signer}, currency.ConfirmationPolicy{MinConfirmations: 1})
	if len(reg) != 1 {
		t.Fatalf("Expected 1 backend, got %d", len(reg))
	}
	if _, err := reg.Get("bitcoin"); err != nil {
		t.Error(err)
	}

	mw.Close()
	if btc.opened {
		t.Error("Wallet not closed")
	}
}

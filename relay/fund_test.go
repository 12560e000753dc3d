package relay

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/currency/mock"
	"github.com/cpacia/bundlr/events"
	"github.com/cpacia/bundlr/models"
	"github.com/cpacia/bundlr/poll"
	"github.com/jarcoal/httpmock"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// spyBackend is a mock backend whose status queries follow a script of
// confirmation counts. It records every status it reported.
type spyBackend struct {
	*mock.Currency

	mtx      sync.Mutex
	script   []uint64
	reported []uint64
	feeCalls int
}

func (s *spyBackend) TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	confs := s.script[len(s.script)-1]
	if len(s.reported) < len(s.script) {
		confs = s.script[len(s.reported)]
	}
	s.reported = append(s.reported, confs)
	return models.TxStatus{Confirmations: confs, Height: 1}, nil
}

func (s *spyBackend) Fee(ctx context.Context, amount *big.Int, to string, multiplier float64) (*big.Int, error) {
	s.mtx.Lock()
	s.feeCalls++
	s.mtx.Unlock()
	return s.Currency.Fee(ctx, amount, to, multiplier)
}

func (s *spyBackend) Reported() []uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]uint64(nil), s.reported...)
}

// memJournal is an in-memory Journal.
type memJournal struct {
	mtx  sync.Mutex
	recs map[models.TxID]models.FundingRecord
}

func newMemJournal() *memJournal {
	return &memJournal{recs: make(map[models.TxID]models.FundingRecord)}
}

func (j *memJournal) Record(rec models.FundingRecord) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	j.recs[rec.TxID] = rec
	return nil
}

func (j *memJournal) MarkState(txID models.TxID, state models.FundingState, lastErr error) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	rec, ok := j.recs[txID]
	if !ok {
		return errors.New("not found")
	}
	rec.State = state
	rec.LastError = ""
	if lastErr != nil {
		rec.LastError = lastErr.Error()
	}
	j.recs[txID] = rec
	return nil
}

func (j *memJournal) Pending(chain string) ([]models.FundingRecord, error) {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	var recs []models.FundingRecord
	for _, rec := range j.recs {
		if rec.Chain == chain && rec.State != models.FundingStateNotified {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (j *memJournal) get(txID models.TxID) models.FundingRecord {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	return j.recs[txID]
}

func fundedBackend(t *testing.T, amount int64) *mock.Currency {
	backend := newMockBackend(t)
	backend.Network().GenerateToAddress(backend.Address(), big.NewInt(amount))
	return backend
}

func registerNotify(fn func(txID string)) {
	httpmock.RegisterResponder(http.MethodPost, testRelay+"/account/balance/mock",
		func(req *http.Request) (*http.Response, error) {
			var body struct {
				TxID string `json:"tx_id"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			if fn != nil {
				fn(body.TxID)
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"confirmed":true}`), nil
		},
	)
}

func TestClient_FundZeroFee(t *testing.T) {
	backend := fundedBackend(t, 1000)
	journal := newMemJournal()
	bus := events.NewBus()
	c := newTestClient(t, backend, WithJournal(journal), WithEventBus(bus))
	defer httpmock.DeactivateAndReset()

	sub, err := bus.Subscribe([]interface{}{
		new(events.FundingSent),
		new(events.FundingConfirmed),
		new(events.FundingCredited),
	}, events.BufSize(64))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	var notified string
	registerNotify(func(txID string) { notified = txID })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go backend.Network().Mine(ctx, 5*time.Millisecond)

	ok, err := c.Fund(ctx, big.NewInt(400), 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Expected the relay to acknowledge the funding")
	}

	if backend.Network().Balance(testDeposit).Cmp(big.NewInt(400)) != 0 {
		t.Errorf("Expected deposit address balance 400, got %s", backend.Network().Balance(testDeposit))
	}
	if backend.Network().Balance(backend.Address()).Cmp(big.NewInt(600)) != 0 {
		t.Errorf("Expected remaining balance 600, got %s", backend.Network().Balance(backend.Address()))
	}
	if notified == "" {
		t.Fatal("Relay was not notified")
	}
	tx, err := backend.Network().Transaction(models.TxID(notified))
	if err != nil {
		t.Fatal(err)
	}
	if tx.Fee.Sign() != 0 {
		t.Errorf("Expected zero fee, got %s", tx.Fee)
	}

	rec := journal.get(models.TxID(notified))
	if rec.State != models.FundingStateNotified {
		t.Errorf("Expected journal state notified, got %s", rec.State)
	}
	if rec.Amount != "400" || rec.Fee != "0" || rec.To != testDeposit {
		t.Errorf("Unexpected journal record %+v", rec)
	}

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case e := <-sub.Out():
			switch evt := e.(type) {
			case *events.FundingSent:
				got = append(got, "sent")
				if evt.Fee.Sign() != 0 {
					t.Errorf("Expected zero fee in event, got %s", evt.Fee)
				}
			case *events.FundingConfirmed:
				got = append(got, "confirmed")
			case *events.FundingCredited:
				got = append(got, "credited")
			}
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for events")
		}
	}
	if got[0] != "sent" || got[1] != "confirmed" || got[2] != "credited" {
		t.Errorf("Unexpected event order %v", got)
	}
}

func TestClient_FundNotifiesOnlyAfterThreshold(t *testing.T) {
	spy := &spyBackend{
		Currency: fundedBackend(t, 1000),
		script:   []uint64{0, 0, 3},
	}
	c := newSpyClient(t, spy)
	defer httpmock.DeactivateAndReset()

	var reportedAtNotify []uint64
	registerNotify(func(string) { reportedAtNotify = spy.Reported() })

	ok, err := c.Fund(context.Background(), big.NewInt(10), 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Expected acknowledgement")
	}
	if len(reportedAtNotify) != 3 {
		t.Fatalf("Expected notify after exactly 3 status queries, got %d", len(reportedAtNotify))
	}
	if reportedAtNotify[2] < 3 {
		t.Errorf("Relay notified at %d confirmations", reportedAtNotify[2])
	}
	for _, n := range reportedAtNotify[:2] {
		if n >= 3 {
			t.Errorf("Threshold reached before the last query: %v", reportedAtNotify)
		}
	}
	if spy.feeCalls != 0 {
		t.Errorf("Fee was estimated for a backend that needs none")
	}
}

func newSpyClient(t *testing.T, spy *spyBackend, opts ...Option) *Client {
	mockedHTTPClient := http.Client{}
	httpmock.ActivateNonDefault(&mockedHTTPClient)
	httpmock.RegisterResponder(http.MethodGet, testRelay+"/info",
		httpmock.NewStringResponder(http.StatusOK, testInfo),
	)
	opts = append([]Option{
		WithHTTPClient(&mockedHTTPClient),
		WithPollOptions(poll.MinConfirmations(3), poll.Interval(time.Millisecond)),
	}, opts...)
	c, err := New(context.Background(), testRelay, spy, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClient_FundErrors(t *testing.T) {
	t.Run("no deposit address", func(t *testing.T) {
		mockedHTTPClient := http.Client{}
		httpmock.ActivateNonDefault(&mockedHTTPClient)
		defer httpmock.DeactivateAndReset()
		httpmock.RegisterResponder(http.MethodGet, testRelay+"/info",
			httpmock.NewStringResponder(http.StatusOK, `{"version":"1","gateway":"g","addresses":{"bitcoin":"1abc"}}`),
		)
		c, err := New(context.Background(), testRelay, fundedBackend(t, 100), WithHTTPClient(&mockedHTTPClient))
		if err != nil {
			t.Fatal(err)
		}
		_, err = c.Fund(context.Background(), big.NewInt(10), 1)
		var fundErr *FundingError
		if !errors.As(err, &fundErr) || fundErr.Step != StepResolveAddress {
			t.Fatalf("Expected resolve-address failure, got %v", err)
		}
		if !errors.Is(err, ErrNoDepositAddress) {
			t.Error("Expected ErrNoDepositAddress cause")
		}
		if fundErr.Sent() {
			t.Error("No transaction should exist")
		}
	})

	t.Run("invalid amount", func(t *testing.T) {
		c := newTestClient(t, fundedBackend(t, 100))
		defer httpmock.DeactivateAndReset()

		_, err := c.Fund(context.Background(), big.NewInt(0), 1)
		var fundErr *FundingError
		if !errors.As(err, &fundErr) || fundErr.Step != StepCreate {
			t.Fatalf("Expected create failure, got %v", err)
		}
		var constructionErr *currency.ConstructionError
		if !errors.As(err, &constructionErr) {
			t.Errorf("Expected construction error cause, got %v", err)
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		c := newTestClient(t, fundedBackend(t, 5))
		defer httpmock.DeactivateAndReset()

		_, err := c.Fund(context.Background(), big.NewInt(10), 1)
		var fundErr *FundingError
		if !errors.As(err, &fundErr) || fundErr.Step != StepSend {
			t.Fatalf("Expected send failure, got %v", err)
		}
		if fundErr.Sent() {
			t.Error("No transaction should exist")
		}
		if httpmock.GetCallCountInfo()["POST "+testRelay+"/account/balance/mock"] != 0 {
			t.Error("Relay notified after failed send")
		}
	})

	t.Run("confirmation timeout", func(t *testing.T) {
		// The network never mines, so the transaction stays unconfirmed and
		// the context ends the wait.
		c := newTestClient(t, fundedBackend(t, 100))
		defer httpmock.DeactivateAndReset()
		registerNotify(nil)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.Fund(ctx, big.NewInt(10), 1)
		var fundErr *FundingError
		if !errors.As(err, &fundErr) || fundErr.Step != StepConfirm {
			t.Fatalf("Expected confirm failure, got %v", err)
		}
		if !fundErr.Sent() {
			t.Error("Expected the transaction to exist")
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
		if httpmock.GetCallCountInfo()["POST "+testRelay+"/account/balance/mock"] != 0 {
			t.Error("Relay notified about an unconfirmed transaction")
		}
	})

	t.Run("not found limit", func(t *testing.T) {
		c := newTestClient(t, fundedBackend(t, 100), WithPollOptions(poll.MaxNotFound(2)))
		defer httpmock.DeactivateAndReset()

		missing := &notFoundBackend{Currency: c.backend.(*mock.Currency)}
		c.backend = missing

		_, err := c.Fund(context.Background(), big.NewInt(10), 1)
		if !errors.Is(err, poll.ErrConfirmationTimeout) {
			t.Fatalf("Expected ErrConfirmationTimeout, got %v", err)
		}
	})
}

type notFoundBackend struct {
	*mock.Currency
}

func (b *notFoundBackend) TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error) {
	return models.TxStatus{}, currency.NewChainError(currency.KindNotFound, "status", errors.New("unknown tx"))
}

func TestClient_NotifyFailureAndResume(t *testing.T) {
	spy := &spyBackend{
		Currency: fundedBackend(t, 1000),
		script:   []uint64{3},
	}
	journal := newMemJournal()
	c := newSpyClient(t, spy, WithJournal(journal))
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testRelay+"/account/balance/mock",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "try later"),
	)

	ok, err := c.Fund(context.Background(), big.NewInt(10), 1)
	if ok {
		t.Error("Expected no acknowledgement")
	}
	var fundErr *FundingError
	if !errors.As(err, &fundErr) || fundErr.Step != StepNotify {
		t.Fatalf("Expected notify failure, got %v", err)
	}
	var relayErr *RelayError
	if !errors.As(err, &relayErr) || relayErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 relay error cause, got %v", err)
	}
	if !fundErr.Sent() {
		t.Fatal("Expected the transaction to exist")
	}

	rec := journal.get(fundErr.TxID)
	if rec.State != models.FundingStateConfirmed {
		t.Errorf("Expected journal state confirmed, got %s", rec.State)
	}
	if rec.LastError == "" {
		t.Error("Expected the notify error to be journaled")
	}

	var notified []string
	registerNotify(func(txID string) { notified = append(notified, txID) })

	queries := len(spy.Reported())
	credited, err := c.ResumePending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(credited) != 1 || credited[0] != fundErr.TxID {
		t.Errorf("Expected %s to be credited, got %v", fundErr.TxID, credited)
	}
	if len(notified) != 1 || notified[0] != fundErr.TxID.String() {
		t.Errorf("Unexpected notifications %v", notified)
	}
	if len(spy.Reported()) != queries {
		t.Error("Confirmed funding was polled again")
	}
	if journal.get(fundErr.TxID).State != models.FundingStateNotified {
		t.Error("Journal not updated after resume")
	}

	credited, err = c.ResumePending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(credited) != 0 {
		t.Errorf("Expected nothing left to resume, got %v", credited)
	}
}

func TestClient_ResumeSentRecord(t *testing.T) {
	spy := &spyBackend{
		Currency: fundedBackend(t, 1000),
		script:   []uint64{1, 3},
	}
	journal := newMemJournal()
	journal.Record(models.FundingRecord{
		TxID:  "interrupted",
		Chain: "mock",
		Relay: testRelay,
		State: models.FundingStateSent,
	})
	journal.Record(models.FundingRecord{
		TxID:  "other-relay",
		Chain: "mock",
		Relay: "https://elsewhere.test",
		State: models.FundingStateSent,
	})

	c := newSpyClient(t, spy, WithJournal(journal))
	defer httpmock.DeactivateAndReset()
	registerNotify(nil)

	credited, err := c.ResumePending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(credited) != 1 || credited[0] != "interrupted" {
		t.Errorf("Unexpected credited %v", credited)
	}
	if len(spy.Reported()) != 2 {
		t.Errorf("Expected 2 status queries, got %d", len(spy.Reported()))
	}
	if journal.get("other-relay").State != models.FundingStateSent {
		t.Error("Funding for another relay was touched")
	}
}

func TestClient_ResumeFailureCountsOnlyAttempted(t *testing.T) {
	spy := &spyBackend{
		Currency: fundedBackend(t, 1000),
		script:   []uint64{3},
	}
	journal := newMemJournal()
	for _, rec := range []models.FundingRecord{
		{TxID: "first", Chain: "mock", Relay: testRelay, State: models.FundingStateConfirmed},
		{TxID: "second", Chain: "mock", Relay: testRelay, State: models.FundingStateConfirmed},
		{TxID: "skipped", Chain: "mock", Relay: "https://elsewhere.test", State: models.FundingStateConfirmed},
	} {
		journal.Record(rec)
	}

	c := newSpyClient(t, spy, WithJournal(journal))
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testRelay+"/account/balance/mock",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "try later"),
	)

	credited, err := c.ResumePending(context.Background())
	if len(credited) != 0 {
		t.Errorf("Expected nothing credited, got %v", credited)
	}
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !strings.HasPrefix(err.Error(), "2 of 2 pending fundings failed") {
		t.Errorf("Unexpected error %q", err)
	}
	var relayErr *RelayError
	if !errors.As(err, &relayErr) {
		t.Errorf("Expected relay error cause, got %v", err)
	}
}

func TestClient_NotifyFunding(t *testing.T) {
	c := newTestClient(t, newMockBackend(t))
	defer httpmock.DeactivateAndReset()

	var got string
	registerNotify(func(txID string) { got = txID })

	ok, err := c.NotifyFunding(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != "abc" {
		t.Errorf("Expected abc to be acknowledged, got %s", got)
	}

	if _, err := c.NotifyFunding(context.Background(), ""); err == nil {
		t.Error("Expected error for empty ID")
	}
}

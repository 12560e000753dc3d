package poll

import (
	"context"
	"errors"
	"github.com/cpacia/bundlr/currency"
	"github.com/cpacia/bundlr/models"
	"sync"
	"testing"
	"time"
)

type scriptedStep struct {
	confirmations uint64
	err           error
}

// scriptedBackend returns the scripted results in order and repeats the
// last one once the script is exhausted.
type scriptedBackend struct {
	mtx     sync.Mutex
	script  []scriptedStep
	queries int
	policy  currency.ConfirmationPolicy
}

func (b *scriptedBackend) TxStatus(ctx context.Context, id models.TxID) (models.TxStatus, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	step := b.script[len(b.script)-1]
	if b.queries < len(b.script) {
		step = b.script[b.queries]
	}
	b.queries++
	if step.err != nil {
		return models.TxStatus{}, step.err
	}
	return models.TxStatus{Confirmations: step.confirmations, Height: 1}, nil
}

func (b *scriptedBackend) ConfirmationPolicy() currency.ConfirmationPolicy {
	return b.policy
}

func (b *scriptedBackend) Queries() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.queries
}

func newBackend(steps ...scriptedStep) *scriptedBackend {
	return &scriptedBackend{
		script: steps,
		policy: currency.ConfirmationPolicy{
			MinConfirmations: 3,
			PollInterval:     time.Millisecond,
		},
	}
}

func TestAwaitConfirmation_ResolvesOnThreshold(t *testing.T) {
	backend := newBackend(
		scriptedStep{confirmations: 0},
		scriptedStep{confirmations: 0},
		scriptedStep{confirmations: 3},
		scriptedStep{err: errors.New("queried after confirmation")},
	)

	var seen []uint64
	err := AwaitConfirmation(context.Background(), "abc", backend, OnStatus(func(attempt int, status models.TxStatus, err error) {
		seen = append(seen, status.Confirmations)
	}))
	if err != nil {
		t.Fatal(err)
	}
	if backend.Queries() != 3 {
		t.Errorf("Expected 3 queries, got %d", backend.Queries())
	}
	if len(seen) != 3 || seen[2] != 3 {
		t.Errorf("Unexpected status sequence %v", seen)
	}
}

func TestAwaitConfirmation_TransientErrorsAreRetried(t *testing.T) {
	backend := newBackend(
		scriptedStep{err: currency.NewChainError(currency.KindNotFound, "status", nil)},
		scriptedStep{err: currency.NewChainError(currency.KindUnavailable, "status", errors.New("timeout"))},
		scriptedStep{confirmations: 1},
		scriptedStep{confirmations: 5},
	)
	if err := AwaitConfirmation(context.Background(), "abc", backend); err != nil {
		t.Fatal(err)
	}
	if backend.Queries() != 4 {
		t.Errorf("Expected 4 queries, got %d", backend.Queries())
	}
}

func TestAwaitConfirmation_FatalErrorStops(t *testing.T) {
	fatal := currency.NewChainError(currency.KindInvalid, "status", errors.New("bad txid"))
	backend := newBackend(
		scriptedStep{confirmations: 0},
		scriptedStep{err: fatal},
		scriptedStep{confirmations: 10},
	)
	err := AwaitConfirmation(context.Background(), "abc", backend)
	if !errors.Is(err, fatal) {
		t.Fatalf("Expected fatal chain error, got %v", err)
	}
	if backend.Queries() != 2 {
		t.Errorf("Expected 2 queries, got %d", backend.Queries())
	}
}

func TestAwaitConfirmation_NotFoundLimit(t *testing.T) {
	backend := newBackend(scriptedStep{err: currency.NewChainError(currency.KindNotFound, "status", nil)})
	err := AwaitConfirmation(context.Background(), "abc", backend, MaxNotFound(4))
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("Expected ErrConfirmationTimeout, got %v", err)
	}
	if backend.Queries() != 4 {
		t.Errorf("Expected 4 queries, got %d", backend.Queries())
	}
}

func TestAwaitConfirmation_NotFoundCounterResets(t *testing.T) {
	notFound := scriptedStep{err: currency.NewChainError(currency.KindNotFound, "status", nil)}
	backend := newBackend(notFound, scriptedStep{confirmations: 0}, notFound, scriptedStep{confirmations: 3})
	if err := AwaitConfirmation(context.Background(), "abc", backend, MaxNotFound(2)); err != nil {
		t.Fatal(err)
	}
}

func TestAwaitConfirmation_ContextCancel(t *testing.T) {
	backend := newBackend(scriptedStep{err: currency.NewChainError(currency.KindNotFound, "status", nil)})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := AwaitConfirmation(ctx, "abc", backend)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestAwaitConfirmation_OptionsOverridePolicy(t *testing.T) {
	backend := newBackend(scriptedStep{confirmations: 1}, scriptedStep{confirmations: 2})
	if err := AwaitConfirmation(context.Background(), "abc", backend, MinConfirmations(1), Interval(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if backend.Queries() != 1 {
		t.Errorf("Expected 1 query, got %d", backend.Queries())
	}
}

func TestAwaitConfirmation_ZeroIntervalIsClamped(t *testing.T) {
	backend := newBackend(scriptedStep{confirmations: 0})
	backend.policy.PollInterval = 0

	if p := EffectivePolicy(backend); p.PollInterval != MinPollInterval {
		t.Errorf("Expected interval %s, got %s", MinPollInterval, p.PollInterval)
	}
	if p := EffectivePolicy(backend, Interval(-time.Second)); p.PollInterval != MinPollInterval {
		t.Errorf("Expected interval %s, got %s", MinPollInterval, p.PollInterval)
	}

	ctx, cancel := context.WithTimeout(context.Background(), MinPollInterval+MinPollInterval/2)
	defer cancel()
	err := AwaitConfirmation(ctx, "abc", backend)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if backend.Queries() > 3 {
		t.Errorf("Expected at most 3 queries, got %d", backend.Queries())
	}
}

package currency

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

func TestChainError_Classification(t *testing.T) {
	tests := []struct {
		kind      ChainErrorKind
		transient bool
	}{
		{KindNotFound, true},
		{KindUnavailable, true},
		{KindInsufficientFunds, false},
		{KindRejected, false},
		{KindInvalid, false},
	}
	for _, test := range tests {
		err := fmt.Errorf("wrapped: %w", NewChainError(test.kind, "status", errors.New("boom")))
		if IsTransient(err) != test.transient {
			t.Errorf("Kind %s: expected transient=%v", test.kind, test.transient)
		}
		if IsNotFound(err) != (test.kind == KindNotFound) {
			t.Errorf("Kind %s: incorrect IsNotFound", test.kind)
		}
	}

	if IsTransient(errors.New("plain")) {
		t.Error("Plain errors must not be transient")
	}
}

func TestChainError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewChainError(KindUnavailable, "send", cause)
	if !errors.Is(err, cause) {
		t.Error("ChainError does not unwrap to its cause")
	}
	if err.Error() != "send: unavailable: connection refused" {
		t.Errorf("Unexpected error string %s", err.Error())
	}
}

func TestValidateAmount(t *testing.T) {
	for _, amt := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		err := ValidateAmount(amt)
		var ce *ConstructionError
		if !errors.As(err, &ce) {
			t.Errorf("Expected ConstructionError for %v, got %v", amt, err)
		}
	}
	if err := ValidateAmount(big.NewInt(1)); err != nil {
		t.Error(err)
	}
}

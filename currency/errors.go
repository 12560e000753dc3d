package currency

import (
	"errors"
	"fmt"
)

// ConstructionError is returned for invalid inputs to transaction
// building. It is never retried.
type ConstructionError struct {
	Field  string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ChainErrorKind classifies a chain failure.
type ChainErrorKind int

const (
	// KindNotFound means the transaction is not yet visible to the chain
	// backend. It is treated as still pending.
	KindNotFound ChainErrorKind = iota

	// KindUnavailable is a network failure talking to the chain backend.
	KindUnavailable

	// KindInsufficientFunds means the wallet cannot cover amount plus fee.
	KindInsufficientFunds

	// KindRejected means the chain refused the transaction.
	KindRejected

	// KindInvalid means the transaction or its ID is permanently invalid.
	KindInvalid
)

func (k ChainErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindUnavailable:
		return "unavailable"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindRejected:
		return "rejected"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Transient returns whether a failure of this kind may resolve by itself.
func (k ChainErrorKind) Transient() bool {
	return k == KindNotFound || k == KindUnavailable
}

// ChainError is a submission or query failure against a backend's chain.
type ChainError struct {
	Kind ChainErrorKind
	Op   string
	Err  error
}

// NewChainError returns a *ChainError for the given operation.
func NewChainError(kind ChainErrorKind, op string, err error) *ChainError {
	return &ChainError{Kind: kind, Op: op, Err: err}
}

func (e *ChainError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a *ChainError of a transient kind.
func IsTransient(err error) bool {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Kind.Transient()
	}
	return false
}

// IsNotFound reports whether err is a *ChainError of kind KindNotFound.
func IsNotFound(err error) bool {
	var ce *ChainError
	return errors.As(err, &ce) && ce.Kind == KindNotFound
}

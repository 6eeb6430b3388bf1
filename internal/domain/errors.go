package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals malformed input, config values or scorer output.
	ErrValidation = errors.New("validation error")
	// ErrRetrieval signals a failed knowledge base retrieval call.
	ErrRetrieval = errors.New("retrieval error")
	// ErrKBUnavailable signals that a knowledge base id could not be resolved to a handle.
	ErrKBUnavailable = errors.New("knowledge base unavailable")
	// ErrScorerUnavailable signals a relevance scorer transport failure.
	ErrScorerUnavailable = errors.New("relevance scorer unavailable")
	// ErrEmbeddingProviderError signals a query embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// Validationf wraps ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RetrievalError wraps a backend failure for one knowledge base.
type RetrievalError struct {
	KBID string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: kb %q: %v", ErrRetrieval.Error(), e.KBID, e.Err)
}

// Is reports ErrRetrieval so callers can match with errors.Is.
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

func (e *RetrievalError) Unwrap() error { return e.Err }

// NewRetrievalError wraps err as a retrieval failure of the given knowledge base.
func NewRetrievalError(kbID string, err error) error {
	return &RetrievalError{KBID: kbID, Err: err}
}

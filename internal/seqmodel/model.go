// Package seqmodel scores event-type paths with a variable-order Markov model.
package seqmodel

import (
	"errors"
	"fmt"

	"github.com/miradorstack/mirador-hids/internal/paths"
)

// Model is the read-only capability the scorer depends on. Implementations
// must be safe for concurrent use.
type Model interface {
	Order() int
	LogLikelihood(c *paths.Collection) (float64, error)
}

// UnknownHandling selects what happens to event types absent from training.
type UnknownHandling string

const (
	// UnknownReject fails scoring with *UnknownSymbolError.
	UnknownReject UnknownHandling = "reject"
	// UnknownReserve keeps one vocabulary slot for unseen symbols, which then
	// only receive prior mass.
	UnknownReserve UnknownHandling = "reserve"
)

// ErrZeroLikelihood reports a path the model assigns probability zero.
var ErrZeroLikelihood = errors.New("path has zero likelihood")

// UnknownSymbolError reports an event type outside the model vocabulary.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q", e.Symbol)
}

// ScoringError wraps a model-internal failure for one path.
type ScoringError struct {
	Path string
	Err  error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("score path [%s]: %v", e.Path, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

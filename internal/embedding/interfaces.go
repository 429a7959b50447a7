// Package embedding provides clients that map text to dense vectors.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider is unreachable or rejected
// the input. Callers must propagate this rather than substituting a zero
// vector, which would silently rank everywhere at similarity 0.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Generator is the interface for generating vector embeddings.
// Implementations must return vectors of a stable dimensionality for a given
// model and be safe for concurrent use.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

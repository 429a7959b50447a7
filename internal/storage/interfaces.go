// Package storage provides the storage contract for the IdeaBank system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. ConceptStore is the core
// contract; EmbeddingCache is an optional capability that backends may add.
package storage

import (
	"context"

	"github.com/ideonautics/ideabank/pkg/types"
)

// ConceptStore provides creation and retrieval of concept records.
type ConceptStore interface {
	// CreateConcepts bulk-inserts drafts under one problem statement.
	// Every record gets a store-assigned ID and a generated_at timestamp;
	// timestamps are non-decreasing in insertion order. Returns the created
	// records in insertion order. Returns ErrInvalidInput when the problem
	// statement is blank or a draft fails validation.
	CreateConcepts(ctx context.Context, problemStatement string, drafts []types.Draft) ([]types.Concept, error)

	// GetConcept retrieves a concept by ID.
	// Returns ErrNotFound if the concept doesn't exist.
	GetConcept(ctx context.Context, id int64) (*types.Concept, error)

	// FindByProblem returns concepts whose problem statement contains the
	// given substring (case-insensitive), ordered by generated_at ascending
	// then ID ascending.
	FindByProblem(ctx context.Context, substring string) ([]types.Concept, error)

	// ConceptsFor returns the concepts filed under exactly the given problem
	// statement, ordered by generated_at ascending then ID ascending.
	ConceptsFor(ctx context.Context, problemStatement string) ([]types.Concept, error)

	// DistinctProblemStatements returns every distinct problem statement
	// currently stored, sorted ascending.
	DistinctProblemStatements(ctx context.Context) ([]string, error)

	// UpdateConcept applies a partial update to a concept and returns the
	// updated record. Returns ErrNotFound if the concept doesn't exist.
	UpdateConcept(ctx context.Context, id int64, patch ConceptPatch) (*types.Concept, error)

	// Close releases any resources held by the store.
	Close() error
}

// ConceptPatch describes a partial update to a concept. Nil fields are left
// untouched. Only the proposal URL is mutable after creation.
type ConceptPatch struct {
	ProposalURL *string
}

// EmbeddingCache persists statement embeddings so they survive restarts and
// don't have to be recomputed on every search. Implemented by the Postgres
// backend; callers discover it via type assertion on the ConceptStore.
type EmbeddingCache interface {
	// GetCachedEmbedding returns the stored embedding for a problem
	// statement and model, or ErrNotFound when none is cached.
	GetCachedEmbedding(ctx context.Context, statement, model string) ([]float32, error)

	// PutCachedEmbedding stores (or replaces) the embedding for a problem
	// statement and model.
	PutCachedEmbedding(ctx context.Context, statement string, embedding []float32, model string) error
}

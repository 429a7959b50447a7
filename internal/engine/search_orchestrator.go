package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/panjf2000/ants/v2"

	"github.com/ideonautics/ideabank/internal/embedding"
	"github.com/ideonautics/ideabank/internal/storage"
	"github.com/ideonautics/ideabank/pkg/types"
)

// ErrSearchTimeout is returned when a search exceeds its overall deadline.
var ErrSearchTimeout = errors.New("search deadline exceeded")

// Options configures the search orchestrator.
type Options struct {
	// SimilarityThreshold is the minimum score for a match to be returned;
	// entries scoring at or below it are dropped (default: 0.7).
	SimilarityThreshold float64

	// DefaultTopK is used when the caller passes topK < 1 (default: 50).
	DefaultTopK int

	// MaxTopK caps topK (default: 500).
	MaxTopK int

	// Deadline bounds the whole search; exceeding it yields ErrSearchTimeout
	// (default: 30s).
	Deadline time.Duration

	// Workers bounds concurrent candidate embedding calls (default: 4).
	Workers int

	// CacheSize is the in-process embedding cache capacity (default: 512).
	CacheSize int

	// CacheTTL is the in-process embedding cache entry lifetime (default: 10m).
	CacheTTL time.Duration
}

// normalize applies defaults to unset options.
func (o *Options) normalize() {
	if o.SimilarityThreshold == 0 {
		o.SimilarityThreshold = 0.7
	}
	if o.DefaultTopK < 1 {
		o.DefaultTopK = 50
	}
	if o.MaxTopK < 1 {
		o.MaxTopK = 500
	}
	if o.Deadline <= 0 {
		o.Deadline = 30 * time.Second
	}
	if o.Workers < 1 {
		o.Workers = 4
	}
	if o.CacheSize < 1 {
		o.CacheSize = 512
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
}

// Match is one ranked search result: a problem statement, its similarity to
// the query, and the concepts filed under it (oldest first).
type Match struct {
	ProblemStatement string
	Similarity       float64
	Concepts         []types.Concept
}

// SearchResult is the outcome of one FindSimilar call. FailedEmbeddings
// counts candidate statements that were skipped because their embedding
// failed; a partial failure reduces the candidate set but never aborts an
// otherwise successful search.
type SearchResult struct {
	Matches          []Match
	CandidateCount   int
	FailedEmbeddings int
}

// SearchOrchestrator drives a similarity search: it embeds the query and
// every distinct stored problem statement, ranks statements by cosine
// similarity, and assembles the surviving matches with their concepts.
//
// The orchestrator holds no per-search state beyond a thread-safe embedding
// cache, so concurrent searches are independent. The embedding provider and
// store are injected at construction time.
type SearchOrchestrator struct {
	store     storage.ConceptStore
	embedder  embedding.Generator
	persisted storage.EmbeddingCache // nil unless the store implements it
	cache     *expirable.LRU[string, []float32]
	pool      *ants.Pool
	opts      Options
}

// NewSearchOrchestrator creates a search orchestrator. If the store also
// implements storage.EmbeddingCache (the Postgres backend does), statement
// embeddings are additionally persisted there and reused across restarts.
func NewSearchOrchestrator(store storage.ConceptStore, embedder embedding.Generator, opts Options) (*SearchOrchestrator, error) {
	opts.normalize()

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to create embedding pool: %w", err)
	}

	o := &SearchOrchestrator{
		store:    store,
		embedder: embedder,
		cache:    expirable.NewLRU[string, []float32](opts.CacheSize, nil, opts.CacheTTL),
		pool:     pool,
		opts:     opts,
	}

	// Prefer persisted embeddings when the backend offers them.
	if pc, ok := store.(storage.EmbeddingCache); ok {
		o.persisted = pc
	}

	return o, nil
}

// Close releases the orchestrator's worker pool.
func (o *SearchOrchestrator) Close() {
	o.pool.Release()
}

// FindSimilar ranks all distinct stored problem statements by cosine
// similarity to query and returns, for each of the first topK that score
// above the threshold, the statement, its score, and its concepts ordered
// oldest first.
//
// A failure embedding the query itself is fatal and wraps
// embedding.ErrUnavailable. A failure embedding an individual candidate
// statement only excludes that statement; such failures are counted in the
// result and logged. An empty query is not special-cased; the provider's
// own validation decides what to do with it.
func (o *SearchOrchestrator) FindSimilar(ctx context.Context, query string, topK int) (*SearchResult, error) {
	if topK < 1 {
		topK = o.opts.DefaultTopK
	}
	if topK > o.opts.MaxTopK {
		topK = o.opts.MaxTopK
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.Deadline)
	defer cancel()

	queryVec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	statements, err := o.store.DistinctProblemStatements(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrSearchTimeout
		}
		return nil, fmt.Errorf("list problem statements: %w", err)
	}

	if len(statements) == 0 {
		return &SearchResult{Matches: []Match{}}, nil
	}

	// Fan out candidate embeddings across the worker pool. Results and
	// errors are collected per index; sibling failures never cancel each
	// other.
	vectors := make([][]float32, len(statements))
	errs := make([]error, len(statements))

	var wg sync.WaitGroup
	for i, stmt := range statements {
		i, stmt := i, stmt
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vectors[i], errs[i] = o.embedStatement(ctx, stmt)
		}
		if err := o.pool.Submit(task); err != nil {
			// Pool released or overloaded: run inline rather than drop.
			task()
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ErrSearchTimeout
	}

	failed := 0
	candidates := make([]Candidate, 0, len(statements))
	for i, stmt := range statements {
		if errs[i] != nil {
			failed++
			log.Printf("search: skipping statement %q (embedding failed): %v", snippet(stmt), errs[i])
			continue
		}
		candidates = append(candidates, Candidate{Key: stmt, Vector: vectors[i]})
	}

	ranked := Rank(queryVec, candidates)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	matches := make([]Match, 0, len(ranked))
	for _, rc := range ranked {
		if rc.Score <= o.opts.SimilarityThreshold {
			continue
		}

		concepts, err := o.store.ConceptsFor(ctx, rc.Key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrSearchTimeout
			}
			return nil, fmt.Errorf("fetch concepts for %q: %w", snippet(rc.Key), err)
		}

		matches = append(matches, Match{
			ProblemStatement: rc.Key,
			Similarity:       rc.Score,
			Concepts:         concepts,
		})
	}

	return &SearchResult{
		Matches:          matches,
		CandidateCount:   len(statements),
		FailedEmbeddings: failed,
	}, nil
}

// embedStatement returns the embedding for a problem statement, consulting
// the in-process cache, then the persisted cache, then the provider.
// Cache layers are a performance optimization only; a miss or a failed
// persist never fails the embedding.
func (o *SearchOrchestrator) embedStatement(ctx context.Context, stmt string) ([]float32, error) {
	if vec, ok := o.cache.Get(stmt); ok {
		return vec, nil
	}

	model := o.embedder.GetModel()
	if o.persisted != nil {
		if vec, err := o.persisted.GetCachedEmbedding(ctx, stmt, model); err == nil {
			o.cache.Add(stmt, vec)
			return vec, nil
		}
	}

	vec, err := o.embedder.Embed(ctx, stmt)
	if err != nil {
		return nil, err
	}

	o.cache.Add(stmt, vec)
	if o.persisted != nil {
		if err := o.persisted.PutCachedEmbedding(ctx, stmt, vec, model); err != nil {
			log.Printf("search: failed to persist embedding for %q: %v", snippet(stmt), err)
		}
	}

	return vec, nil
}

// snippet shortens a problem statement for log lines.
func snippet(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

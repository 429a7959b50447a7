package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"

	"github.com/ideonautics/ideabank/internal/storage"
)

// GetCachedEmbedding returns a previously persisted embedding for the given
// statement and model, or storage.ErrNotFound when none exists.
func (s *ConceptStore) GetCachedEmbedding(ctx context.Context, statement, model string) ([]float32, error) {
	var blob []byte
	var dimension int
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding, dimension FROM statement_embeddings
		 WHERE statement_hash = $1 AND model = $2`,
		statementHash(statement), model,
	).Scan(&blob, &dimension)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get cached embedding: %w", err)
	}

	vec, err := deserializeEmbedding(blob, dimension)
	if err != nil {
		return nil, fmt.Errorf("postgres: corrupt cached embedding: %w", err)
	}
	return vec, nil
}

// PutCachedEmbedding persists an embedding for the given statement and model,
// replacing any previous entry. When pgvector is available the native vector
// column is populated alongside the BYTEA blob.
func (s *ConceptStore) PutCachedEmbedding(ctx context.Context, statement string, embedding []float32, model string) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding is empty", storage.ErrInvalidInput)
	}

	hash := statementHash(statement)
	blob := serializeEmbedding(embedding)

	if s.pgvectorAvailable {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO statement_embeddings (statement_hash, model, embedding, dimension, embedding_vec)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (statement_hash, model)
			 DO UPDATE SET embedding = EXCLUDED.embedding,
			               dimension = EXCLUDED.dimension,
			               embedding_vec = EXCLUDED.embedding_vec,
			               updated_at = now()`,
			hash, model, blob, len(embedding), pgvector.NewVector(embedding))
		if err != nil {
			return fmt.Errorf("postgres: failed to cache embedding: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statement_embeddings (statement_hash, model, embedding, dimension)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (statement_hash, model)
		 DO UPDATE SET embedding = EXCLUDED.embedding,
		               dimension = EXCLUDED.dimension,
		               updated_at = now()`,
		hash, model, blob, len(embedding))
	if err != nil {
		return fmt.Errorf("postgres: failed to cache embedding: %w", err)
	}
	return nil
}

// statementHash keys cache rows by content so statement length never hits a
// column limit.
func statementHash(statement string) string {
	sum := sha256.Sum256([]byte(statement))
	return hex.EncodeToString(sum[:])
}

// serializeEmbedding packs float32 values little-endian.
func serializeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeEmbedding(blob []byte, dimension int) ([]float32, error) {
	if dimension <= 0 || len(blob) != dimension*4 {
		return nil, fmt.Errorf("blob length %d does not match dimension %d", len(blob), dimension)
	}
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

var _ storage.EmbeddingCache = (*ConceptStore)(nil)

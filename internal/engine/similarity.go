// Package engine implements the similarity search core of IdeaBank:
// cosine scoring over embedding vectors and the orchestrator that drives a
// search across every stored problem statement.
package engine

import (
	"math"
	"slices"
	"strings"
)

// Candidate is a problem statement paired with its embedding vector.
type Candidate struct {
	Key    string
	Vector []float32
}

// RankedCandidate is a candidate with its similarity score against a query.
type RankedCandidate struct {
	Key   string
	Score float64
}

// CosineSimilarity returns the cosine of the angle between a and b:
// dot(a,b) / (|a|·|b|), in [-1, 1].
//
// It returns 0 when either vector has zero norm: an all-zero embedding is a
// legitimate (if unlikely) output for a degenerate input such as an empty
// string, and must not divide by zero. A length mismatch also scores 0; the
// vectors came from different models and are not comparable.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every candidate against the query vector and returns them
// sorted by score descending. Equal scores are broken by candidate key
// ascending so the ordering is deterministic regardless of the order the
// store happened to enumerate statements in.
func Rank(query []float32, candidates []Candidate) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, RankedCandidate{
			Key:   c.Key,
			Score: CosineSimilarity(query, c.Vector),
		})
	}

	slices.SortFunc(ranked, func(a, b RankedCandidate) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})

	return ranked
}

package handlers

import (
	"encoding/json"

	"github.com/ideonautics/ideabank/internal/engine"
	"github.com/ideonautics/ideabank/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CreateConceptsRequest is the request format for POST /concepts.
//
// Concepts are kept as raw JSON until the workflow is known; the workflow
// decides which draft shape each entry is decoded into.
type CreateConceptsRequest struct {
	ProblemStatement string            `json:"problem_statement"`
	Workflow         types.Workflow    `json:"workflow"`
	Concepts         []json.RawMessage `json:"concepts"`
}

// CreateConceptsResponse is the response format for POST /concepts.
type CreateConceptsResponse struct {
	Created  []types.Concept `json:"created"`
	Count    int             `json:"count"`
	Workflow types.Workflow  `json:"workflow"`
}

// ProblemsResponse is the response format for GET /problems.
type ProblemsResponse struct {
	Problems []ProblemSummary `json:"problems"`
	Total    int              `json:"total"`
}

// ProblemSummary is one distinct problem statement with its concept count.
type ProblemSummary struct {
	ProblemStatement string `json:"problem_statement"`
	ConceptCount     int    `json:"concept_count"`
}

// SimilarConceptsResponse is the response format for GET /concepts/similar.
type SimilarConceptsResponse struct {
	Query            string         `json:"query"`
	Matches          []SimilarMatch `json:"matches"`
	CandidateCount   int            `json:"candidate_count"`
	FailedEmbeddings int            `json:"failed_embeddings,omitempty"`
}

// SimilarMatch is one matched problem statement with its concepts.
type SimilarMatch struct {
	ProblemStatement string          `json:"problem_statement"`
	Similarity       float64         `json:"similarity"`
	Concepts         []types.Concept `json:"concepts"`
}

// UploadProposalResponse is the response format for POST /concepts/{id}/proposal.
type UploadProposalResponse struct {
	ConceptID   int64  `json:"concept_id"`
	ProposalURL string `json:"proposal_url"`
}

// HealthResponse is the response format for GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	Embedding string `json:"embedding"`
}

// newSimilarResponse converts an engine search result to the wire shape.
func newSimilarResponse(query string, result *engine.SearchResult) SimilarConceptsResponse {
	matches := make([]SimilarMatch, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, SimilarMatch{
			ProblemStatement: m.ProblemStatement,
			Similarity:       m.Similarity,
			Concepts:         m.Concepts,
		})
	}
	return SimilarConceptsResponse{
		Query:            query,
		Matches:          matches,
		CandidateCount:   result.CandidateCount,
		FailedEmbeddings: result.FailedEmbeddings,
	}
}

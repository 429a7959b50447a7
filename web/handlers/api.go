// Package handlers provides HTTP handlers and middleware for the IdeaBank API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ideonautics/ideabank/internal/blob"
	"github.com/ideonautics/ideabank/internal/config"
	"github.com/ideonautics/ideabank/internal/embedding"
	"github.com/ideonautics/ideabank/internal/engine"
	"github.com/ideonautics/ideabank/internal/storage"
	"github.com/ideonautics/ideabank/pkg/types"
)

// maxProposalSize caps proposal uploads at 32 MiB.
const maxProposalSize = 32 << 20

// APIHandlers holds the dependencies for all API endpoints.
type APIHandlers struct {
	store    storage.ConceptStore
	blobs    blob.Store
	search   *engine.SearchOrchestrator
	embedder embedding.Generator
	hub      *WebSocketHub
	cfg      *config.Config
}

// NewAPIHandlers creates the API handler set.
func NewAPIHandlers(store storage.ConceptStore, blobs blob.Store, search *engine.SearchOrchestrator, embedder embedding.Generator, hub *WebSocketHub, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		store:    store,
		blobs:    blobs,
		search:   search,
		embedder: embedder,
		hub:      hub,
		cfg:      cfg,
	}
}

// ListConcepts handles GET /concepts?problem_statement=<substring>.
// The parameter is required; matching is a case-insensitive substring search
// and results come back oldest first.
func (h *APIHandlers) ListConcepts(w http.ResponseWriter, r *http.Request) {
	problem := r.URL.Query().Get("problem_statement")
	if problem == "" {
		respondError(w, http.StatusUnprocessableEntity, "problem_statement query parameter is required", nil)
		return
	}

	concepts, err := h.store.FindByProblem(r.Context(), problem)
	if err != nil {
		respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "failed to list concepts", err)
		return
	}

	respondJSON(w, http.StatusOK, concepts)
}

// CreateConcepts handles POST /concepts: a bulk insert of generated concepts
// under one problem statement. The workflow field selects which draft shape
// the concepts array is decoded into.
func (h *APIHandlers) CreateConcepts(w http.ResponseWriter, r *http.Request) {
	var req CreateConceptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to parse request body", err)
		return
	}

	if strings.TrimSpace(req.ProblemStatement) == "" {
		respondError(w, http.StatusUnprocessableEntity, "problem_statement is required", nil)
		return
	}

	if req.Workflow == "" {
		req.Workflow = types.WorkflowTraditional
	}

	drafts, err := decodeDrafts(req.Workflow, req.Concepts)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid concepts", err)
		return
	}

	created, err := h.store.CreateConcepts(r.Context(), req.ProblemStatement, drafts)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusUnprocessableEntity, "invalid concepts", err)
			return
		}
		respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "failed to create concepts", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type: "concept_created",
			Data: map[string]interface{}{
				"problem_statement": req.ProblemStatement,
				"count":             len(created),
				"workflow":          req.Workflow,
			},
		})
	}

	// An empty concepts list is a no-op, not a creation
	status := http.StatusCreated
	if len(created) == 0 {
		status = http.StatusOK
	}
	respondJSON(w, status, CreateConceptsResponse{
		Created:  created,
		Count:    len(created),
		Workflow: req.Workflow,
	})
}

// decodeDrafts decodes raw concept entries into the draft shape the workflow
// requires. Unknown fields are rejected so a cross-industry payload sent under
// the traditional workflow fails loudly instead of silently dropping fields.
func decodeDrafts(workflow types.Workflow, raw []json.RawMessage) ([]types.Draft, error) {
	drafts := make([]types.Draft, 0, len(raw))
	for i, entry := range raw {
		dec := json.NewDecoder(strings.NewReader(string(entry)))
		dec.DisallowUnknownFields()

		var d types.Draft
		switch workflow {
		case types.WorkflowTraditional:
			var td types.TraditionalDraft
			if err := dec.Decode(&td); err != nil {
				return nil, fmt.Errorf("concept %d: %w", i, err)
			}
			d = &td
		case types.WorkflowCrossIndustry:
			var cd types.CrossIndustryDraft
			if err := dec.Decode(&cd); err != nil {
				return nil, fmt.Errorf("concept %d: %w", i, err)
			}
			d = &cd
		default:
			return nil, fmt.Errorf("unsupported workflow: %q", workflow)
		}

		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("concept %d: %w", i, err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// ListProblems handles GET /problems: every distinct problem statement with
// its concept count, sorted ascending.
func (h *APIHandlers) ListProblems(w http.ResponseWriter, r *http.Request) {
	statements, err := h.store.DistinctProblemStatements(r.Context())
	if err != nil {
		respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "failed to list problems", err)
		return
	}

	problems := make([]ProblemSummary, 0, len(statements))
	for _, stmt := range statements {
		concepts, err := h.store.ConceptsFor(r.Context(), stmt)
		if err != nil {
			respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "failed to count concepts", err)
			return
		}
		problems = append(problems, ProblemSummary{
			ProblemStatement: stmt,
			ConceptCount:     len(concepts),
		})
	}

	respondJSON(w, http.StatusOK, ProblemsResponse{Problems: problems, Total: len(problems)})
}

// SimilarConcepts handles GET /concepts/similar?problem_statement=<text>&top_k=<n>.
// It embeds the query, ranks every stored problem statement by cosine
// similarity, and returns the statements scoring above the threshold together
// with their concepts.
func (h *APIHandlers) SimilarConcepts(w http.ResponseWriter, r *http.Request) {
	problem := r.URL.Query().Get("problem_statement")
	if problem == "" {
		respondError(w, http.StatusUnprocessableEntity, "problem_statement query parameter is required", nil)
		return
	}

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusUnprocessableEntity, "top_k must be a positive integer", err)
			return
		}
		topK = parsed
	}

	result, err := h.search.FindSimilar(r.Context(), problem, topK)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrSearchTimeout):
			respondErrorCode(w, http.StatusInternalServerError, "SEARCH_TIMEOUT", "search deadline exceeded", err)
		case errors.Is(err, embedding.ErrUnavailable), errors.Is(err, embedding.ErrCircuitOpen):
			respondErrorCode(w, http.StatusInternalServerError, "EMBEDDING_UNAVAILABLE", "embedding provider unavailable", err)
		case errors.Is(err, storage.ErrUnavailable):
			respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "storage unavailable", err)
		default:
			respondError(w, http.StatusInternalServerError, "search failed", err)
		}
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type: "search_performed",
			Data: map[string]interface{}{
				"query":   problem,
				"matches": len(result.Matches),
			},
		})
	}

	respondJSON(w, http.StatusOK, newSimilarResponse(problem, result))
}

// UploadProposal handles POST /concepts/{id}/proposal: a multipart upload of
// a proposal document, stored in the blob backend and linked to the concept.
func (h *APIHandlers) UploadProposal(w http.ResponseWriter, r *http.Request) {
	id, err := conceptID(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid concept ID", err)
		return
	}

	if _, err := h.store.GetConcept(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "concept not found", nil)
			return
		}
		respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "failed to get concept", err)
		return
	}

	if err := r.ParseMultipartForm(maxProposalSize); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to parse multipart form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "file field is required", err)
		return
	}
	defer file.Close()

	key := blob.NewKey(id, header.Filename)
	url, err := h.blobs.Upload(r.Context(), key, file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store proposal", err)
		return
	}

	if _, err := h.store.UpdateConcept(r.Context(), id, storage.ConceptPatch{ProposalURL: &url}); err != nil {
		respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "failed to link proposal", err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type: "proposal_uploaded",
			Data: map[string]interface{}{"concept_id": id, "filename": header.Filename},
		})
	}

	respondJSON(w, http.StatusOK, UploadProposalResponse{ConceptID: id, ProposalURL: url})
}

// DownloadProposal handles GET /concepts/{id}/download: streams the proposal
// document attached to a concept.
func (h *APIHandlers) DownloadProposal(w http.ResponseWriter, r *http.Request) {
	id, err := conceptID(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid concept ID", err)
		return
	}

	concept, err := h.store.GetConcept(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "concept not found", nil)
			return
		}
		respondErrorCode(w, http.StatusInternalServerError, "STORE_UNAVAILABLE", "failed to get concept", err)
		return
	}

	if concept.ProposalURL == nil {
		respondError(w, http.StatusNotFound, "concept has no proposal", nil)
		return
	}

	key, err := blob.KeyFromURL(*concept.ProposalURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stored proposal URL is malformed", err)
		return
	}

	body, err := h.blobs.Download(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			respondError(w, http.StatusNotFound, "proposal file not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to read proposal", err)
		return
	}
	defer body.Close()

	filename := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		filename = key[i+1:]
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, body); err != nil {
		// Headers are already sent; log and move on.
		log.Printf("failed to stream proposal %s: %v", key, err)
	}
}

// Health handles GET /api/health.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Storage: "ok", Embedding: h.embedder.GetModel()}
	if _, err := h.store.DistinctProblemStatements(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Storage = "error"
	}
	respondJSON(w, http.StatusOK, resp)
}

// conceptID extracts the {id} path value as an int64.
func conceptID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return 0, fmt.Errorf("concept ID is required")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing else to do but log.
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	respondErrorCode(w, statusCode, http.StatusText(statusCode), message, err)
}

// respondErrorCode writes an error response with an explicit machine-readable
// code.
func respondErrorCode(w http.ResponseWriter, statusCode int, code, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}

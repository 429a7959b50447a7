package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ideonautics/ideabank/internal/blob"
	"github.com/ideonautics/ideabank/internal/config"
	"github.com/ideonautics/ideabank/internal/storage"
	"github.com/ideonautics/ideabank/pkg/types"
)

// mockStore implements storage.ConceptStore over in-memory maps.
type mockStore struct {
	nextID   int64
	concepts map[int64]*types.Concept
}

func newMockStore() *mockStore {
	return &mockStore{nextID: 1, concepts: make(map[int64]*types.Concept)}
}

func (m *mockStore) CreateConcepts(ctx context.Context, problemStatement string, drafts []types.Draft) ([]types.Concept, error) {
	if strings.TrimSpace(problemStatement) == "" {
		return nil, fmt.Errorf("%w: problem statement is required", storage.ErrInvalidInput)
	}
	created := make([]types.Concept, 0, len(drafts))
	for _, d := range drafts {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		c := d.Record(problemStatement)
		c.ID = m.nextID
		m.nextID++
		m.concepts[c.ID] = &c
		created = append(created, c)
	}
	return created, nil
}

func (m *mockStore) GetConcept(ctx context.Context, id int64) (*types.Concept, error) {
	if c, ok := m.concepts[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockStore) FindByProblem(ctx context.Context, substring string) ([]types.Concept, error) {
	results := []types.Concept{}
	for _, c := range m.concepts {
		if strings.Contains(strings.ToLower(c.ProblemStatement), strings.ToLower(substring)) {
			results = append(results, *c)
		}
	}
	return results, nil
}

func (m *mockStore) ConceptsFor(ctx context.Context, problemStatement string) ([]types.Concept, error) {
	results := []types.Concept{}
	for _, c := range m.concepts {
		if c.ProblemStatement == problemStatement {
			results = append(results, *c)
		}
	}
	return results, nil
}

func (m *mockStore) DistinctProblemStatements(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var statements []string
	for _, c := range m.concepts {
		if !seen[c.ProblemStatement] {
			seen[c.ProblemStatement] = true
			statements = append(statements, c.ProblemStatement)
		}
	}
	return statements, nil
}

func (m *mockStore) UpdateConcept(ctx context.Context, id int64, patch storage.ConceptPatch) (*types.Concept, error) {
	c, ok := m.concepts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if patch.ProposalURL != nil {
		c.ProposalURL = patch.ProposalURL
	}
	copied := *c
	return &copied, nil
}

func (m *mockStore) Close() error { return nil }

func newTestHandlers(t *testing.T, store storage.ConceptStore) *APIHandlers {
	t.Helper()
	blobs, err := blob.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	cfg := &config.Config{}
	return NewAPIHandlers(store, blobs, nil, nil, nil, cfg)
}

func TestListConceptsRequiresProblemParam(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	req := httptest.NewRequest(http.MethodGet, "/concepts", nil)
	rec := httptest.NewRecorder()
	h.ListConcepts(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestListConceptsFiltersBySubstring(t *testing.T) {
	store := newMockStore()
	if _, err := store.CreateConcepts(context.Background(), "reduce bridge maintenance cost", []types.Draft{
		&types.TraditionalDraft{DraftBase: types.DraftBase{Title: "drone inspection"}},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	h := newTestHandlers(t, store)

	req := httptest.NewRequest(http.MethodGet, "/concepts?problem_statement=bridge", nil)
	rec := httptest.NewRecorder()
	h.ListConcepts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var concepts []types.Concept
	if err := json.NewDecoder(rec.Body).Decode(&concepts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(concepts) != 1 {
		t.Errorf("expected 1 concept, got %d", len(concepts))
	}
}

func TestCreateConceptsInvalidBody(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	req := httptest.NewRequest(http.MethodPost, "/concepts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.CreateConcepts(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestCreateConceptsMissingProblemStatement(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	body := `{"workflow":"traditional","concepts":[{"title":"x"}]}`
	req := httptest.NewRequest(http.MethodPost, "/concepts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateConcepts(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestCreateConceptsUnknownWorkflow(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	body := `{"problem_statement":"p","workflow":"quantum","concepts":[{"title":"x"}]}`
	req := httptest.NewRequest(http.MethodPost, "/concepts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateConcepts(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestCreateConceptsRejectsMismatchedFields(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	// Cross-industry field under the traditional workflow
	body := `{"problem_statement":"p","workflow":"traditional","concepts":[{"title":"x","industry":"aviation"}]}`
	req := httptest.NewRequest(http.MethodPost, "/concepts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateConcepts(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for mismatched fields, got %d", rec.Code)
	}
}

func TestCreateConceptsBulk(t *testing.T) {
	store := newMockStore()
	h := newTestHandlers(t, store)

	body := `{
		"problem_statement": "reduce cold chain spoilage",
		"workflow": "cross_industry",
		"concepts": [
			{"title": "phase-change packaging", "industry": "aerospace"},
			{"title": "swarm temperature sensing", "industry": "agriculture"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/concepts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateConcepts(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateConceptsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected count 2, got %d", resp.Count)
	}
	if resp.Created[0].Industry == nil || *resp.Created[0].Industry != "aerospace" {
		t.Error("cross-industry field lost in round trip")
	}
}

func TestCreateConceptsEmptyListIsNoOp(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	body := `{"problem_statement":"p","workflow":"traditional","concepts":[]}`
	req := httptest.NewRequest(http.MethodPost, "/concepts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateConcepts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty list, got %d", rec.Code)
	}
	var resp CreateConceptsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("expected count 0, got %d", resp.Count)
	}
}

func TestSimilarConceptsRequiresProblemParam(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	req := httptest.NewRequest(http.MethodGet, "/concepts/similar", nil)
	rec := httptest.NewRecorder()
	h.SimilarConcepts(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestSimilarConceptsRejectsBadTopK(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	for _, topK := range []string{"abc", "0", "-5"} {
		req := httptest.NewRequest(http.MethodGet, "/concepts/similar?problem_statement=x&top_k="+topK, nil)
		rec := httptest.NewRecorder()
		h.SimilarConcepts(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("top_k=%s: expected 422, got %d", topK, rec.Code)
		}
	}
}

func TestUploadProposalConceptNotFound(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	req := httptest.NewRequest(http.MethodPost, "/concepts/99/proposal", nil)
	req.SetPathValue("id", "99")
	rec := httptest.NewRecorder()
	h.UploadProposal(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUploadProposalInvalidID(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	req := httptest.NewRequest(http.MethodPost, "/concepts/abc/proposal", nil)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	h.UploadProposal(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestUploadAndDownloadProposal(t *testing.T) {
	store := newMockStore()
	created, err := store.CreateConcepts(context.Background(), "some problem", []types.Draft{
		&types.TraditionalDraft{DraftBase: types.DraftBase{Title: "t"}},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	h := newTestHandlers(t, store)
	id := created[0].ID

	// Build the multipart upload
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "proposal.pdf")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write([]byte("the proposal content")); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/concepts/%d/proposal", id), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("id", fmt.Sprint(id))
	rec := httptest.NewRecorder()
	h.UploadProposal(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var uploadResp UploadProposalResponse
	if err := json.NewDecoder(rec.Body).Decode(&uploadResp); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	if uploadResp.ProposalURL == "" {
		t.Fatal("expected proposal URL in response")
	}

	// The concept now carries the URL
	concept, err := store.GetConcept(context.Background(), id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if concept.ProposalURL == nil || *concept.ProposalURL != uploadResp.ProposalURL {
		t.Error("proposal URL not linked to concept")
	}

	// Download round trip
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/concepts/%d/download", id), nil)
	req.SetPathValue("id", fmt.Sprint(id))
	rec = httptest.NewRecorder()
	h.DownloadProposal(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "the proposal content" {
		t.Errorf("unexpected download body: %q", body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "proposal.pdf") {
		t.Errorf("expected filename in Content-Disposition, got %q", cd)
	}
}

func TestDownloadProposalNoAttachment(t *testing.T) {
	store := newMockStore()
	created, err := store.CreateConcepts(context.Background(), "some problem", []types.Draft{
		&types.TraditionalDraft{DraftBase: types.DraftBase{Title: "t"}},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	h := newTestHandlers(t, store)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/concepts/%d/download", created[0].ID), nil)
	req.SetPathValue("id", fmt.Sprint(created[0].ID))
	rec := httptest.NewRecorder()
	h.DownloadProposal(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for concept without proposal, got %d", rec.Code)
	}
}

func TestDownloadProposalConceptNotFound(t *testing.T) {
	h := newTestHandlers(t, newMockStore())

	req := httptest.NewRequest(http.MethodGet, "/concepts/404/download", nil)
	req.SetPathValue("id", "404")
	rec := httptest.NewRecorder()
	h.DownloadProposal(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListProblems(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	for _, stmt := range []string{"problem one", "problem one", "problem two"} {
		if _, err := store.CreateConcepts(ctx, stmt, []types.Draft{
			&types.TraditionalDraft{DraftBase: types.DraftBase{Title: "t"}},
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	h := newTestHandlers(t, store)

	req := httptest.NewRequest(http.MethodGet, "/problems", nil)
	rec := httptest.NewRecorder()
	h.ListProblems(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ProblemsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("expected 2 problems, got %d", resp.Total)
	}
	counts := make(map[string]int)
	for _, p := range resp.Problems {
		counts[p.ProblemStatement] = p.ConceptCount
	}
	if counts["problem one"] != 2 || counts["problem two"] != 1 {
		t.Errorf("unexpected concept counts: %v", counts)
	}
}

package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ideonautics/ideabank/internal/storage"
	"github.com/ideonautics/ideabank/pkg/types"
)

func newTestStore(t *testing.T) *ConceptStore {
	t.Helper()
	store, err := NewConceptStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func traditionalDraft(title string) types.Draft {
	return &types.TraditionalDraft{DraftBase: types.DraftBase{Title: title}}
}

func TestCreateAndGetConcept(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	draft := &types.TraditionalDraft{
		DraftBase: types.DraftBase{
			Title:        "Aerogel pipe insulation",
			Description:  strPtr("Wrap district heating pipes in aerogel"),
			TRLCitations: json.RawMessage(`[{"source":"doi:10/xyz"}]`),
		},
		CostEstimate: strPtr("$40/m"),
	}

	created, err := store.CreateConcepts(ctx, "reduce district heating losses", []types.Draft{draft})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 created concept, got %d", len(created))
	}
	if created[0].ID == 0 {
		t.Error("expected store-assigned ID")
	}
	if created[0].GeneratedAt.IsZero() {
		t.Error("expected store-assigned timestamp")
	}

	got, err := store.GetConcept(ctx, created[0].ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "Aerogel pipe insulation" {
		t.Errorf("unexpected title: %q", got.Title)
	}
	if got.Description == nil || *got.Description != "Wrap district heating pipes in aerogel" {
		t.Error("description not round-tripped")
	}
	if got.CostEstimate == nil || *got.CostEstimate != "$40/m" {
		t.Error("cost estimate not round-tripped")
	}
	if string(got.TRLCitations) != `[{"source":"doi:10/xyz"}]` {
		t.Errorf("citations not round-tripped: %s", got.TRLCitations)
	}
	if got.Agent != nil || got.Industry != nil || got.ProposalURL != nil {
		t.Error("unset fields must come back nil")
	}
}

func TestGetConceptNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetConcept(context.Background(), 9999)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateConceptsValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateConcepts(ctx, "   ", []types.Draft{traditionalDraft("ok")})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank statement, got %v", err)
	}

	_, err = store.CreateConcepts(ctx, "valid problem", []types.Draft{traditionalDraft("")})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for invalid draft, got %v", err)
	}

	// A failing draft in the batch rejects the whole batch
	_, err = store.CreateConcepts(ctx, "valid problem", []types.Draft{
		traditionalDraft("good"),
		traditionalDraft(""),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected batch rejection, got %v", err)
	}
	found, err := store.FindByProblem(ctx, "valid problem")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no partial insert, found %d concepts", len(found))
	}
}

func TestFindByProblemSubstring(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateConcepts(ctx, "Reduce URBAN heat islands", []types.Draft{traditionalDraft("a")}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.CreateConcepts(ctx, "improve rural broadband", []types.Draft{traditionalDraft("b")}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Case-insensitive match
	found, err := store.FindByProblem(ctx, "urban heat")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 match, got %d", len(found))
	}
	if found[0].ProblemStatement != "Reduce URBAN heat islands" {
		t.Errorf("unexpected match: %q", found[0].ProblemStatement)
	}

	// LIKE metacharacters match literally, not as wildcards
	found, err = store.FindByProblem(ctx, "%")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected %% to match literally, got %d matches", len(found))
	}
}

func TestConceptsForOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Two batches; the second must never sort before the first.
	first, err := store.CreateConcepts(ctx, "shared problem", []types.Draft{
		traditionalDraft("first"),
		traditionalDraft("second"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := store.CreateConcepts(ctx, "shared problem", []types.Draft{traditionalDraft("third")})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	all, err := store.ConceptsFor(ctx, "shared problem")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 concepts, got %d", len(all))
	}

	wantOrder := []int64{first[0].ID, first[1].ID, second[0].ID}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Errorf("position %d: expected ID %d, got %d", i, want, all[i].ID)
		}
	}
	for i := 1; i < len(all); i++ {
		if all[i].GeneratedAt.Before(all[i-1].GeneratedAt) {
			t.Errorf("timestamps decreased at position %d", i)
		}
	}
}

func TestDistinctProblemStatements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, stmt := range []string{"zebra problem", "alpha problem", "zebra problem"} {
		if _, err := store.CreateConcepts(ctx, stmt, []types.Draft{traditionalDraft("t")}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	statements, err := store.DistinctProblemStatements(ctx)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(statements) != 2 {
		t.Fatalf("expected 2 distinct statements, got %d", len(statements))
	}
	if statements[0] != "alpha problem" || statements[1] != "zebra problem" {
		t.Errorf("expected ascending order, got %v", statements)
	}
}

func TestUpdateConceptProposalURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateConcepts(ctx, "some problem", []types.Draft{traditionalDraft("t")})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	url := "/proposals/1/abc-plan.pdf"
	updated, err := store.UpdateConcept(ctx, created[0].ID, storage.ConceptPatch{ProposalURL: &url})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ProposalURL == nil || *updated.ProposalURL != url {
		t.Error("proposal URL not set")
	}
	if !updated.GeneratedAt.Equal(created[0].GeneratedAt) {
		t.Error("update must not touch generated_at")
	}
}

func TestUpdateConceptNotFound(t *testing.T) {
	store := newTestStore(t)
	url := "/proposals/x"
	_, err := store.UpdateConcept(context.Background(), 12345, storage.ConceptPatch{ProposalURL: &url})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

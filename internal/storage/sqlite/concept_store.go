// Package sqlite provides a SQLite implementation of the concept store,
// suited to single-node and development deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/ideonautics/ideabank/internal/storage"
	"github.com/ideonautics/ideabank/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS concepts (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	problem_statement       TEXT NOT NULL,
	agent                   TEXT,
	title                   TEXT NOT NULL,
	description             TEXT,
	novelty_reasoning       TEXT,
	feasibility_reasoning   TEXT,
	cost_estimate           TEXT,
	trl                     REAL,
	trl_reasoning           TEXT,
	trl_citations           TEXT,
	validated_trl           REAL,
	validated_trl_reasoning TEXT,
	validated_trl_citations TEXT,
	components              TEXT,
	"references"            TEXT,
	constructive_critique   TEXT,
	industry                TEXT,
	original_solution       TEXT,
	adaptation_challenges   TEXT,
	proposal_url            TEXT,
	generated_at            TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_concepts_problem_statement ON concepts (problem_statement);
CREATE INDEX IF NOT EXISTS idx_concepts_generated_at ON concepts (generated_at);
`

// ConceptStore implements storage.ConceptStore using SQLite.
type ConceptStore struct {
	db *sql.DB
}

// NewConceptStore creates a SQLite concept store at dataPath/ideabank.db,
// creating the directory and schema as needed.
func NewConceptStore(dataPath string) (*ConceptStore, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "ideabank.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
	}

	return &ConceptStore{db: db}, nil
}

// GetDB returns the underlying database connection.
func (s *ConceptStore) GetDB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *ConceptStore) Close() error {
	return s.db.Close()
}

const conceptColumns = `id, problem_statement, agent, title, description,
	novelty_reasoning, feasibility_reasoning, cost_estimate,
	trl, trl_reasoning, trl_citations,
	validated_trl, validated_trl_reasoning, validated_trl_citations,
	components, "references", constructive_critique,
	industry, original_solution, adaptation_challenges,
	proposal_url, generated_at`

// CreateConcepts bulk-inserts drafts under one problem statement inside a
// single transaction. Every record in the batch gets the same Go-assigned
// timestamp, so a later batch never sorts before an earlier one.
func (s *ConceptStore) CreateConcepts(ctx context.Context, problemStatement string, drafts []types.Draft) ([]types.Concept, error) {
	if strings.TrimSpace(problemStatement) == "" {
		return nil, fmt.Errorf("%w: problem statement is required", storage.ErrInvalidInput)
	}
	for _, d := range drafts {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}
	if len(drafts) == 0 {
		return []types.Concept{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO concepts (
			problem_statement, agent, title, description,
			novelty_reasoning, feasibility_reasoning, cost_estimate,
			trl, trl_reasoning, trl_citations,
			validated_trl, validated_trl_reasoning, validated_trl_citations,
			components, "references", constructive_critique,
			industry, original_solution, adaptation_challenges,
			generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	created := make([]types.Concept, 0, len(drafts))
	for _, d := range drafts {
		c := d.Record(problemStatement)
		c.GeneratedAt = now

		result, err := tx.ExecContext(ctx, insert,
			c.ProblemStatement, strArg(c.Agent), c.Title, strArg(c.Description),
			strArg(c.NoveltyReasoning), strArg(c.FeasibilityReasoning), strArg(c.CostEstimate),
			floatArg(c.TRL), strArg(c.TRLReasoning), jsonArg(c.TRLCitations),
			floatArg(c.ValidatedTRL), strArg(c.ValidatedTRLReasoning), jsonArg(c.ValidatedTRLCitations),
			jsonArg(c.Components), jsonArg(c.References), strArg(c.ConstructiveCritique),
			strArg(c.Industry), strArg(c.OriginalSolution), strArg(c.AdaptationChallenges),
			c.GeneratedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to insert concept: %w", err)
		}

		c.ID, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to read insert id: %w", err)
		}

		created = append(created, c)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to commit: %w", err)
	}

	return created, nil
}

// GetConcept retrieves a concept by ID.
func (s *ConceptStore) GetConcept(ctx context.Context, id int64) (*types.Concept, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conceptColumns+` FROM concepts WHERE id = ?`, id)

	c, err := scanConcept(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get concept: %w", err)
	}
	return c, nil
}

// FindByProblem returns concepts whose problem statement contains the given
// substring, case-insensitively, oldest first. instr avoids LIKE escaping
// entirely; the substring always matches literally.
func (s *ConceptStore) FindByProblem(ctx context.Context, substring string) ([]types.Concept, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conceptColumns+` FROM concepts
		 WHERE instr(lower(problem_statement), lower(?)) > 0
		 ORDER BY generated_at ASC, id ASC`, substring)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query concepts: %w", err)
	}
	defer rows.Close()

	return collectConcepts(rows)
}

// ConceptsFor returns the concepts filed under exactly the given problem
// statement, oldest first.
func (s *ConceptStore) ConceptsFor(ctx context.Context, problemStatement string) ([]types.Concept, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conceptColumns+` FROM concepts
		 WHERE problem_statement = ?
		 ORDER BY generated_at ASC, id ASC`, problemStatement)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query concepts: %w", err)
	}
	defer rows.Close()

	return collectConcepts(rows)
}

// DistinctProblemStatements returns every distinct problem statement, sorted
// ascending.
func (s *ConceptStore) DistinctProblemStatements(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT problem_statement FROM concepts ORDER BY problem_statement ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query problem statements: %w", err)
	}
	defer rows.Close()

	var statements []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan problem statement: %w", err)
		}
		statements = append(statements, stmt)
	}
	return statements, rows.Err()
}

// UpdateConcept applies a partial update and returns the updated record.
func (s *ConceptStore) UpdateConcept(ctx context.Context, id int64, patch storage.ConceptPatch) (*types.Concept, error) {
	if patch.ProposalURL != nil {
		result, err := s.db.ExecContext(ctx,
			`UPDATE concepts SET proposal_url = ? WHERE id = ?`, *patch.ProposalURL, id)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to update concept: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to check rows affected: %w", err)
		}
		if affected == 0 {
			return nil, storage.ErrNotFound
		}
	}

	return s.GetConcept(ctx, id)
}

func collectConcepts(rows *sql.Rows) ([]types.Concept, error) {
	concepts := []types.Concept{}
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan concept: %w", err)
		}
		concepts = append(concepts, *c)
	}
	return concepts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConcept(row scanner) (*types.Concept, error) {
	var c types.Concept
	var agent, description, novelty, feasibility, cost sql.NullString
	var trlReasoning, vTRLReasoning, critique sql.NullString
	var industry, origSolution, adaptation, proposalURL sql.NullString
	var trl, vTRL sql.NullFloat64
	var trlCitations, vTRLCitations, components, references []byte

	err := row.Scan(
		&c.ID, &c.ProblemStatement, &agent, &c.Title, &description,
		&novelty, &feasibility, &cost,
		&trl, &trlReasoning, &trlCitations,
		&vTRL, &vTRLReasoning, &vTRLCitations,
		&components, &references, &critique,
		&industry, &origSolution, &adaptation,
		&proposalURL, &c.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Agent = nullStr(agent)
	c.Description = nullStr(description)
	c.NoveltyReasoning = nullStr(novelty)
	c.FeasibilityReasoning = nullStr(feasibility)
	c.CostEstimate = nullStr(cost)
	c.TRL = nullFloat(trl)
	c.TRLReasoning = nullStr(trlReasoning)
	c.TRLCitations = rawJSON(trlCitations)
	c.ValidatedTRL = nullFloat(vTRL)
	c.ValidatedTRLReasoning = nullStr(vTRLReasoning)
	c.ValidatedTRLCitations = rawJSON(vTRLCitations)
	c.Components = rawJSON(components)
	c.References = rawJSON(references)
	c.ConstructiveCritique = nullStr(critique)
	c.Industry = nullStr(industry)
	c.OriginalSolution = nullStr(origSolution)
	c.AdaptationChallenges = nullStr(adaptation)
	c.ProposalURL = nullStr(proposalURL)

	return &c, nil
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

func strArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatArg(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var _ storage.ConceptStore = (*ConceptStore)(nil)

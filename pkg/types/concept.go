// Package types defines the core data types shared across the IdeaBank system.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Concept represents a single proposal idea filed under a problem statement.
// One table shape serves both ideation workflows; fields the workflow does
// not use stay null.
type Concept struct {
	// Core identification fields
	ID               int64     `json:"id"`                // Store-assigned unique identifier
	ProblemStatement string    `json:"problem_statement"` // Grouping/search key, never empty
	Title            string    `json:"title"`             // Never empty
	GeneratedAt      time.Time `json:"generated_at"`      // Store-assigned at creation, never mutated

	// Shared descriptive fields
	Agent                 *string         `json:"agent,omitempty"` // Generation process that produced this concept
	Description           *string         `json:"description,omitempty"`
	TRL                   *float64        `json:"trl,omitempty"` // Technology readiness level
	TRLReasoning          *string         `json:"trl_reasoning,omitempty"`
	TRLCitations          json.RawMessage `json:"trl_citations,omitempty"`
	ValidatedTRL          *float64        `json:"validated_trl,omitempty"`
	ValidatedTRLReasoning *string         `json:"validated_trl_reasoning,omitempty"`
	ValidatedTRLCitations json.RawMessage `json:"validated_trl_citations,omitempty"`
	Components            json.RawMessage `json:"components,omitempty"`
	References            json.RawMessage `json:"references,omitempty"`
	ConstructiveCritique  *string         `json:"constructive_critique,omitempty"`

	// Traditional workflow fields
	NoveltyReasoning     *string `json:"novelty_reasoning,omitempty"`
	FeasibilityReasoning *string `json:"feasibility_reasoning,omitempty"`
	CostEstimate         *string `json:"cost_estimate,omitempty"`

	// Cross-industry workflow fields
	Industry             *string `json:"industry,omitempty"`
	OriginalSolution     *string `json:"original_solution,omitempty"`
	AdaptationChallenges *string `json:"adaptation_challenges,omitempty"`

	// Attached proposal document (set once after upload)
	ProposalURL *string `json:"proposal_url,omitempty"`
}

// Workflow identifies which ideation workflow produced a draft.
type Workflow string

const (
	// WorkflowTraditional is the default single-industry ideation workflow.
	WorkflowTraditional Workflow = "traditional"

	// WorkflowCrossIndustry adapts a solution observed in another industry.
	WorkflowCrossIndustry Workflow = "cross_industry"
)

// ErrInvalidDraft indicates that a draft failed validation.
var ErrInvalidDraft = errors.New("invalid concept draft")

// Draft is a concept awaiting insertion. The two workflow variants are
// selected explicitly by the caller rather than inferred from which keys
// happen to be present.
type Draft interface {
	// Validate checks the draft's required fields.
	Validate() error

	// Record converts the draft into a Concept for the given problem
	// statement. ID and GeneratedAt are left for the store to assign.
	Record(problemStatement string) Concept
}

// DraftBase holds the fields common to both workflow variants.
type DraftBase struct {
	Agent                 *string         `json:"agent,omitempty"`
	Title                 string          `json:"title"`
	Description           *string         `json:"description,omitempty"`
	TRL                   *float64        `json:"trl,omitempty"`
	TRLReasoning          *string         `json:"trl_reasoning,omitempty"`
	TRLCitations          json.RawMessage `json:"trl_citations,omitempty"`
	ValidatedTRL          *float64        `json:"validated_trl,omitempty"`
	ValidatedTRLReasoning *string         `json:"validated_trl_reasoning,omitempty"`
	ValidatedTRLCitations json.RawMessage `json:"validated_trl_citations,omitempty"`
	Components            json.RawMessage `json:"components,omitempty"`
	References            json.RawMessage `json:"references,omitempty"`
	ConstructiveCritique  *string         `json:"constructive_critique,omitempty"`
}

// Validate checks the shared required fields.
func (d *DraftBase) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	return nil
}

// record fills a Concept with the shared fields.
func (d *DraftBase) record(problemStatement string) Concept {
	return Concept{
		ProblemStatement:      problemStatement,
		Title:                 d.Title,
		Agent:                 d.Agent,
		Description:           d.Description,
		TRL:                   d.TRL,
		TRLReasoning:          d.TRLReasoning,
		TRLCitations:          d.TRLCitations,
		ValidatedTRL:          d.ValidatedTRL,
		ValidatedTRLReasoning: d.ValidatedTRLReasoning,
		ValidatedTRLCitations: d.ValidatedTRLCitations,
		Components:            d.Components,
		References:            d.References,
		ConstructiveCritique:  d.ConstructiveCritique,
	}
}

// TraditionalDraft is a draft from the traditional ideation workflow.
type TraditionalDraft struct {
	DraftBase

	NoveltyReasoning     *string `json:"novelty_reasoning,omitempty"`
	FeasibilityReasoning *string `json:"feasibility_reasoning,omitempty"`
	CostEstimate         *string `json:"cost_estimate,omitempty"`
}

// Record converts the draft into a Concept.
func (d *TraditionalDraft) Record(problemStatement string) Concept {
	c := d.record(problemStatement)
	c.NoveltyReasoning = d.NoveltyReasoning
	c.FeasibilityReasoning = d.FeasibilityReasoning
	c.CostEstimate = d.CostEstimate
	return c
}

// CrossIndustryDraft is a draft from the cross-industry ideation workflow:
// a solution observed in another industry, adapted to the problem at hand.
type CrossIndustryDraft struct {
	DraftBase

	Industry             *string `json:"industry,omitempty"`
	OriginalSolution     *string `json:"original_solution,omitempty"`
	AdaptationChallenges *string `json:"adaptation_challenges,omitempty"`
}

// Record converts the draft into a Concept.
func (d *CrossIndustryDraft) Record(problemStatement string) Concept {
	c := d.record(problemStatement)
	c.Industry = d.Industry
	c.OriginalSolution = d.OriginalSolution
	c.AdaptationChallenges = d.AdaptationChallenges
	return c
}

// Compile-time assertions that both variants satisfy Draft.
var _ Draft = (*TraditionalDraft)(nil)
var _ Draft = (*CrossIndustryDraft)(nil)

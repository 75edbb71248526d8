package model

import "time"

// PipelineState is the orchestrator's current state
type PipelineState string

const (
	StateNotStarted PipelineState = "not_started"
	StateRetrieving PipelineState = "retrieving"
	StateExtracting PipelineState = "extracting"
	StateVerifying  PipelineState = "verifying"
	StateGating     PipelineState = "gating"
	StateReporting  PipelineState = "reporting"
	StateComplete   PipelineState = "complete"
	StateFailed     PipelineState = "failed"
)

// StageSeverity indicates how serious a stage error was
type StageSeverity string

const (
	SeverityWarning StageSeverity = "warning"
	SeverityError   StageSeverity = "error"
)

// StageError records a recoverable stage-local failure. Stage errors
// accumulate over the run and are never cleared; a non-empty list does
// not mean the run failed.
type StageError struct {
	Stage    string        `json:"stage"`
	Message  string        `json:"message"`
	Severity StageSeverity `json:"severity"`
	At       time.Time     `json:"at"`
}

// GateDecision is the quality gate's output. The gate never increments
// the iteration counter itself; the orchestrator interprets the decision.
type GateDecision struct {
	Sufficient    bool     `json:"sufficient"`
	CoverageScore float64  `json:"coverage_score"`
	Reasons       []string `json:"reasons"`

	// Uncovered lists the expanded queries without a supporting claim,
	// for refinement targeting. Reasons stay presentational.
	Uncovered []string `json:"uncovered_queries,omitempty"`
}

// RunContext is the single mutable state object threaded through every
// pipeline stage for one query. The orchestrator owns the sequencing, so
// the context has exactly one writer at any instant. It is created once
// per incoming query and discarded (or handed read-only to the report
// collaborator) at run completion.
type RunContext struct {
	RunID string `json:"run_id"`
	Query string `json:"query"` // Immutable after creation

	// Order matters: the first expanded query is canonical.
	ExpandedQueries []string `json:"expanded_queries"`

	// Current fused, ranked evidence set. Replaced wholesale after each
	// fusion pass; a refinement pass fuses the previous pass's top chunks
	// together with newly retrieved ones so information is not lost.
	Evidence []EvidenceChunk `json:"evidence"`

	Claims         []Claim         `json:"claims"`
	Contradictions []Contradiction `json:"contradictions"`
	VerifiedClaims []VerifiedClaim `json:"verified_claims"`

	Gate *GateDecision `json:"gate,omitempty"` // Most recent gate decision

	Iteration     int `json:"iteration"`
	MaxIterations int `json:"max_iterations"` // Fixed for the run

	StageErrors []StageError  `json:"stage_errors"`
	State       PipelineState `json:"state"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Optional LLM research brief produced at Reporting. Never affects
	// any pipeline decision.
	Brief string `json:"brief,omitempty"`
}

// AddStageError appends a recoverable failure record
func (rc *RunContext) AddStageError(stage, message string, severity StageSeverity) {
	rc.StageErrors = append(rc.StageErrors, StageError{
		Stage:    stage,
		Message:  message,
		Severity: severity,
		At:       time.Now().UTC(),
	})
}

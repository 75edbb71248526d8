// Package pipeline sequences a research run through its stages:
// retrieval fan-out, claim extraction, verification, and the quality
// gate, with a bounded refinement loop feeding gate gaps back into
// retrieval. The orchestrator owns the run context; stages never talk
// to each other directly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/noema/internal/extract"
	"github.com/ppiankov/noema/internal/llm"
	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/retrieve"
)

// ErrMalformedContext means a stage produced output violating the run
// context's invariants. The run transitions to Failed; partial results
// stay on the returned context.
var ErrMalformedContext = errors.New("malformed run context")

// ErrEmptyQuery rejects a run before any stage starts
var ErrEmptyQuery = errors.New("empty query")

// Stage collaborator contracts. The concrete implementations live in
// their own packages; the orchestrator depends only on these shapes.
type (
	// QueryExpander produces the expanded query list, canonical first
	QueryExpander interface {
		Expand(ctx context.Context, query string) []string
	}

	// Retriever runs the concurrent fan-out and fusion pass
	Retriever interface {
		Retrieve(ctx context.Context, queries []string, prior []model.EvidenceChunk) retrieve.Result
	}

	// ClaimExtractor parses evidence into claims, degrading rather
	// than failing
	ClaimExtractor interface {
		Extract(ctx context.Context, query string, evidence []model.EvidenceChunk) extract.Outcome
	}

	// ContradictionDetector finds conflicting claim pairs
	ContradictionDetector interface {
		Detect(claims []model.Claim) []model.Contradiction
	}

	// ClaimVerifier scores claims against the evidence pool
	ClaimVerifier interface {
		Verify(claims []model.Claim, contradictions []model.Contradiction, evidence []model.EvidenceChunk) []model.VerifiedClaim
	}

	// GateEvaluator decides whether evidence suffices to report on
	GateEvaluator interface {
		Evaluate(rc *model.RunContext) model.GateDecision
	}
)

// Orchestrator drives one run at a time through the state machine
type Orchestrator struct {
	expander  QueryExpander
	retriever Retriever
	extractor ClaimExtractor
	detector  ContradictionDetector
	verifier  ClaimVerifier
	gate      GateEvaluator
	provider  llm.Provider // Optional, for the research brief
	notifier  *Notifier

	maxIterations int
	runDeadline   time.Duration
	wantBrief     bool
	logger        *zap.Logger
}

// Options carries the orchestrator's collaborators. All stage fields
// are required; Provider and Notifier may be nil.
type Options struct {
	Expander  QueryExpander
	Retriever Retriever
	Extractor ClaimExtractor
	Detector  ContradictionDetector
	Verifier  ClaimVerifier
	Gate      GateEvaluator
	Provider  llm.Provider
	Notifier  *Notifier

	MaxIterations int
	RunDeadline   time.Duration
	Brief         bool
	Logger        *zap.Logger
}

// NewOrchestrator wires the stages together
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}
	maxIterations := opts.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Orchestrator{
		expander:      opts.Expander,
		retriever:     opts.Retriever,
		extractor:     opts.Extractor,
		detector:      opts.Detector,
		verifier:      opts.Verifier,
		gate:          opts.Gate,
		provider:      opts.Provider,
		notifier:      notifier,
		maxIterations: maxIterations,
		runDeadline:   opts.RunDeadline,
		wantBrief:     opts.Brief,
		logger:        logger,
	}
}

// Notifier returns the transition notifier for subscribing before Run
func (o *Orchestrator) Notifier() *Notifier {
	return o.notifier
}

// Run executes the full pipeline for one query. The returned context
// always carries whatever the run produced, including on failure.
func (o *Orchestrator) Run(ctx context.Context, query string) (*model.RunContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if o.runDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runDeadline)
		defer cancel()
	}

	rc := &model.RunContext{
		RunID:         uuid.NewString(),
		Query:         query,
		MaxIterations: o.maxIterations,
		State:         model.StateNotStarted,
		StartedAt:     time.Now().UTC(),
	}

	o.logger.Info("run started",
		zap.String("run_id", rc.RunID),
		zap.String("query", query),
		zap.Int("max_iterations", rc.MaxIterations))

	err := o.execute(ctx, rc)
	rc.FinishedAt = time.Now().UTC()

	if err != nil {
		o.fail(rc, err)
		return rc, err
	}

	o.transition(rc, model.StateComplete)
	o.logger.Info("run complete",
		zap.String("run_id", rc.RunID),
		zap.Int("evidence", len(rc.Evidence)),
		zap.Int("verified_claims", len(rc.VerifiedClaims)),
		zap.Int("stage_errors", len(rc.StageErrors)),
		zap.Duration("took", rc.FinishedAt.Sub(rc.StartedAt)))
	return rc, nil
}

func (o *Orchestrator) execute(ctx context.Context, rc *model.RunContext) error {
	queries := o.expander.Expand(ctx, rc.Query)
	rc.ExpandedQueries = queries

	deadlineHit := false
	for {
		// Retrieving
		o.transition(rc, model.StateRetrieving)
		rc.Iteration++

		result := o.retriever.Retrieve(ctx, queries, rc.Evidence)
		rc.Evidence = result.Evidence
		rc.StageErrors = append(rc.StageErrors, result.Errors...)

		// An expired run deadline abandons in-flight calls but the run
		// continues with whatever completed; only the refinement loop
		// stops. Every later stage is a pure transformation.
		if ctx.Err() != nil && !deadlineHit {
			deadlineHit = true
			rc.AddStageError("retrieving", "run deadline exceeded, continuing with completed partial results", model.SeverityWarning)
		}

		if err := validateEvidence(rc); err != nil {
			return err
		}

		// Extracting
		o.transition(rc, model.StateExtracting)
		outcome := o.extractor.Extract(ctx, rc.Query, rc.Evidence)
		rc.Claims = outcome.Claims
		if outcome.Degraded {
			rc.AddStageError("extracting", "generative extraction unavailable, pattern fallback used", model.SeverityWarning)
		}
		rc.Contradictions = o.detector.Detect(rc.Claims)

		if err := validateClaims(rc); err != nil {
			return err
		}

		// Verifying
		o.transition(rc, model.StateVerifying)
		rc.VerifiedClaims = o.verifier.Verify(rc.Claims, rc.Contradictions, rc.Evidence)

		if len(rc.VerifiedClaims) != len(rc.Claims) {
			return fmt.Errorf("%w: %d claims but %d verified claims", ErrMalformedContext, len(rc.Claims), len(rc.VerifiedClaims))
		}

		// Gating
		o.transition(rc, model.StateGating)
		decision := o.gate.Evaluate(rc)
		rc.Gate = &decision

		if decision.Sufficient || deadlineHit || rc.Iteration >= rc.MaxIterations {
			if !decision.Sufficient && !deadlineHit {
				rc.AddStageError("gating",
					fmt.Sprintf("iteration budget exhausted at coverage %.2f", decision.CoverageScore),
					model.SeverityWarning)
			}
			break
		}

		// Refinement pass: put the gate's uncovered queries first so
		// the next retrieval spends its budget on the gaps
		queries = refinementQueries(rc.ExpandedQueries, decision)
		o.logger.Info("refinement pass",
			zap.String("run_id", rc.RunID),
			zap.Int("iteration", rc.Iteration),
			zap.Float64("coverage", decision.CoverageScore),
			zap.Strings("queries", queries))
	}

	// Reporting
	o.transition(rc, model.StateReporting)
	if o.wantBrief && o.provider != nil {
		o.writeBrief(ctx, rc)
	}
	return nil
}

// refinementQueries reorders the expanded queries so uncovered ones
// come first, preserving relative order within each group
func refinementQueries(expanded []string, decision model.GateDecision) []string {
	uncovered := decision.Uncovered
	if len(uncovered) == 0 {
		return expanded
	}
	missing := make(map[string]bool, len(uncovered))
	for _, q := range uncovered {
		missing[q] = true
	}
	out := make([]string, 0, len(expanded))
	for _, q := range expanded {
		if missing[q] {
			out = append(out, q)
		}
	}
	for _, q := range expanded {
		if !missing[q] {
			out = append(out, q)
		}
	}
	return out
}

// writeBrief asks the provider for a short prose summary of the
// verified claims. Failure leaves the brief empty and records a
// warning; it never affects the run outcome.
func (o *Orchestrator) writeBrief(ctx context.Context, rc *model.RunContext) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research question: %s\n\nVerified findings:\n", rc.Query)
	for _, vc := range rc.VerifiedClaims {
		fmt.Fprintf(&sb, "- [%s, confidence %.2f] %s\n", vc.Verdict, vc.Confidence, vc.Claim.Text)
	}
	if len(rc.Contradictions) > 0 {
		fmt.Fprintf(&sb, "\nUnresolved contradictions: %d\n", len(rc.Contradictions))
	}
	sb.WriteString("\nWrite a concise research brief (3-6 sentences) answering the question from these findings. Note disputed points explicitly. Do not invent facts beyond the findings.")

	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		System:      "You are a careful research analyst. Summarize only what the findings state.",
		Prompt:      sb.String(),
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		rc.AddStageError("reporting", fmt.Sprintf("brief generation failed: %v", err), model.SeverityWarning)
		return
	}
	rc.Brief = strings.TrimSpace(resp.Text)
}

func (o *Orchestrator) transition(rc *model.RunContext, to model.PipelineState) {
	from := rc.State
	rc.State = to
	o.notifier.Publish(newTransition(rc, from, to))
	o.logger.Debug("state transition",
		zap.String("run_id", rc.RunID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

func (o *Orchestrator) fail(rc *model.RunContext, err error) {
	rc.AddStageError(string(rc.State), err.Error(), model.SeverityError)
	o.transition(rc, model.StateFailed)
	o.logger.Error("run failed",
		zap.String("run_id", rc.RunID),
		zap.String("stage", string(rc.State)),
		zap.Error(err))
}

// validateEvidence enforces the evidence invariants between stages
func validateEvidence(rc *model.RunContext) error {
	for i, chunk := range rc.Evidence {
		if chunk.SourceID == "" {
			return fmt.Errorf("%w: evidence[%d] has no source ID", ErrMalformedContext, i)
		}
		if strings.TrimSpace(chunk.Text) == "" {
			return fmt.Errorf("%w: evidence[%d] is empty", ErrMalformedContext, i)
		}
	}
	return nil
}

// validateClaims enforces provenance indexes before verification
func validateClaims(rc *model.RunContext) error {
	for i, claim := range rc.Claims {
		if claim.ChunkIndex < 0 || claim.ChunkIndex >= len(rc.Evidence) {
			return fmt.Errorf("%w: claims[%d] chunk index %d out of range", ErrMalformedContext, i, claim.ChunkIndex)
		}
	}
	for i, con := range rc.Contradictions {
		if con.ClaimA < 0 || con.ClaimA >= len(rc.Claims) || con.ClaimB < 0 || con.ClaimB >= len(rc.Claims) {
			return fmt.Errorf("%w: contradictions[%d] references missing claim", ErrMalformedContext, i)
		}
	}
	return nil
}

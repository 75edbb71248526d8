package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/noema/internal/extract"
	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/retrieve"
)

type stubExpander struct {
	queries []string
}

func (s *stubExpander) Expand(_ context.Context, query string) []string {
	if len(s.queries) > 0 {
		return s.queries
	}
	return []string{query}
}

type stubRetriever struct {
	results    []retrieve.Result
	calls      int
	gotQueries [][]string
}

func (s *stubRetriever) Retrieve(_ context.Context, queries []string, _ []model.EvidenceChunk) retrieve.Result {
	s.gotQueries = append(s.gotQueries, append([]string(nil), queries...))
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx]
}

type stubExtractor struct {
	outcome extract.Outcome
}

func (s *stubExtractor) Extract(_ context.Context, _ string, _ []model.EvidenceChunk) extract.Outcome {
	return s.outcome
}

type stubDetector struct {
	contradictions []model.Contradiction
}

func (s *stubDetector) Detect(_ []model.Claim) []model.Contradiction {
	if s.contradictions == nil {
		return []model.Contradiction{}
	}
	return s.contradictions
}

type stubVerifier struct {
	mismatch bool
}

func (s *stubVerifier) Verify(claims []model.Claim, _ []model.Contradiction, _ []model.EvidenceChunk) []model.VerifiedClaim {
	if s.mismatch {
		return nil
	}
	out := make([]model.VerifiedClaim, len(claims))
	for i, c := range claims {
		out[i] = model.VerifiedClaim{Claim: c, Verdict: model.VerdictSupported, Confidence: 0.9}
	}
	return out
}

type stubGate struct {
	decisions []model.GateDecision
	calls     int
}

func (s *stubGate) Evaluate(_ *model.RunContext) model.GateDecision {
	idx := s.calls
	s.calls++
	if idx >= len(s.decisions) {
		idx = len(s.decisions) - 1
	}
	return s.decisions[idx]
}

// blockedRetriever waits out the run deadline, then returns whatever
// calls had completed before the cutoff
type blockedRetriever struct {
	calls int
}

func (s *blockedRetriever) Retrieve(ctx context.Context, _ []string, _ []model.EvidenceChunk) retrieve.Result {
	s.calls++
	<-ctx.Done()
	return retrieve.Result{
		Evidence: goodEvidence(),
		Errors: []model.StageError{
			{Stage: "retrieving", Message: "web: abandoned in-flight call", Severity: model.SeverityWarning},
		},
	}
}

func goodEvidence() []model.EvidenceChunk {
	return []model.EvidenceChunk{
		{Text: "some retrieved passage", SourceID: "src:1", SourceType: model.SourceIndexed, FusedScore: 0.03},
	}
}

func goodClaims() []model.Claim {
	return []model.Claim{
		{Text: "a verifiable statement", SourceRefs: []string{"src:1"}, ChunkIndex: 0},
	}
}

func newTestOrchestrator(retriever Retriever, g GateEvaluator, extractor ClaimExtractor, maxIterations int) *Orchestrator {
	if extractor == nil {
		extractor = &stubExtractor{outcome: extract.Outcome{Claims: goodClaims()}}
	}
	return NewOrchestrator(Options{
		Expander:      &stubExpander{},
		Retriever:     retriever,
		Extractor:     extractor,
		Detector:      &stubDetector{},
		Verifier:      &stubVerifier{},
		Gate:          g,
		MaxIterations: maxIterations,
	})
}

func TestOrchestrator_SingleIterationRun(t *testing.T) {
	retriever := &stubRetriever{results: []retrieve.Result{{Evidence: goodEvidence()}}}
	g := &stubGate{decisions: []model.GateDecision{{Sufficient: true, CoverageScore: 0.9}}}
	orch := newTestOrchestrator(retriever, g, nil, 2)

	events, cancel := orch.Notifier().Subscribe(32)
	defer cancel()

	rc, err := orch.Run(context.Background(), "test question")
	if err != nil {
		t.Fatalf("Expected clean run, got %v", err)
	}

	if rc.State != model.StateComplete {
		t.Errorf("Expected complete state, got %s", rc.State)
	}
	if rc.Iteration != 1 {
		t.Errorf("Expected 1 iteration, got %d", rc.Iteration)
	}
	if retriever.calls != 1 {
		t.Errorf("Expected 1 retrieval pass, got %d", retriever.calls)
	}
	if len(rc.VerifiedClaims) != 1 {
		t.Errorf("Expected verified claims on context, got %d", len(rc.VerifiedClaims))
	}
	if rc.FinishedAt.Before(rc.StartedAt) {
		t.Error("FinishedAt precedes StartedAt")
	}

	wantSequence := []model.PipelineState{
		model.StateRetrieving,
		model.StateExtracting,
		model.StateVerifying,
		model.StateGating,
		model.StateReporting,
		model.StateComplete,
	}
	for i, want := range wantSequence {
		select {
		case ev := <-events:
			if ev.To != want {
				t.Errorf("Transition %d: got %s, want %s", i, ev.To, want)
			}
			if ev.From == model.StateRetrieving && ev.Summary == "" {
				t.Error("Expected a stage summary when leaving retrieving")
			}
		default:
			t.Fatalf("Missing transition %d (%s)", i, want)
		}
	}
}

func TestOrchestrator_RefinementStopsAtIterationBudget(t *testing.T) {
	retriever := &stubRetriever{results: []retrieve.Result{{Evidence: goodEvidence()}}}
	g := &stubGate{decisions: []model.GateDecision{
		{Sufficient: false, CoverageScore: 0.4, Uncovered: []string{"test question"}},
	}}
	orch := newTestOrchestrator(retriever, g, nil, 2)

	rc, err := orch.Run(context.Background(), "test question")
	if err != nil {
		t.Fatalf("Insufficient coverage must not fail the run: %v", err)
	}

	if retriever.calls != 2 {
		t.Errorf("Expected exactly 2 retrieval passes, got %d", retriever.calls)
	}
	if rc.Iteration != 2 {
		t.Errorf("Expected iteration counter at 2, got %d", rc.Iteration)
	}
	if rc.State != model.StateComplete {
		t.Errorf("Expected complete despite insufficient gate, got %s", rc.State)
	}

	found := false
	for _, se := range rc.StageErrors {
		if se.Stage == "gating" && strings.Contains(se.Message, "iteration budget") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an iteration-budget stage error, got %v", rc.StageErrors)
	}
}

func TestOrchestrator_DeadlineDuringRetrievalCompletes(t *testing.T) {
	retriever := &blockedRetriever{}
	g := &stubGate{decisions: []model.GateDecision{{Sufficient: false, CoverageScore: 0.2}}}
	orch := NewOrchestrator(Options{
		Expander:      &stubExpander{},
		Retriever:     retriever,
		Extractor:     &stubExtractor{outcome: extract.Outcome{Claims: goodClaims()}},
		Detector:      &stubDetector{},
		Verifier:      &stubVerifier{},
		Gate:          g,
		MaxIterations: 2,
		RunDeadline:   30 * time.Millisecond,
	})

	rc, err := orch.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("Deadline expiry must not fail the run: %v", err)
	}
	if rc.State != model.StateComplete {
		t.Errorf("Expected complete, got %s", rc.State)
	}
	if retriever.calls != 1 {
		t.Errorf("Expected refinement stopped after the expired pass, got %d retrieval calls", retriever.calls)
	}
	if len(rc.Evidence) == 0 {
		t.Error("Expected completed partial evidence kept on context")
	}

	found := false
	for _, se := range rc.StageErrors {
		if se.Stage == "retrieving" && strings.Contains(se.Message, "deadline") {
			found = true
			if se.Severity != model.SeverityWarning {
				t.Errorf("Deadline stage error severity = %q, want warning", se.Severity)
			}
		}
	}
	if !found {
		t.Errorf("Expected a deadline stage error, got %v", rc.StageErrors)
	}
}

func TestOrchestrator_RefinementPrioritizesUncoveredQueries(t *testing.T) {
	retriever := &stubRetriever{results: []retrieve.Result{{Evidence: goodEvidence()}}}
	g := &stubGate{decisions: []model.GateDecision{
		{Sufficient: false, CoverageScore: 0.4, Uncovered: []string{"second variant"}},
		{Sufficient: true, CoverageScore: 0.9},
	}}
	orch := NewOrchestrator(Options{
		Expander:      &stubExpander{queries: []string{"first variant", "second variant"}},
		Retriever:     retriever,
		Extractor:     &stubExtractor{outcome: extract.Outcome{Claims: goodClaims()}},
		Detector:      &stubDetector{},
		Verifier:      &stubVerifier{},
		Gate:          g,
		MaxIterations: 2,
	})

	if _, err := orch.Run(context.Background(), "question"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(retriever.gotQueries) != 2 {
		t.Fatalf("Expected 2 retrieval passes, got %d", len(retriever.gotQueries))
	}
	second := retriever.gotQueries[1]
	if len(second) != 2 || second[0] != "second variant" {
		t.Errorf("Expected uncovered query first on refinement, got %v", second)
	}
}

func TestOrchestrator_PartialRetrievalFailureCompletes(t *testing.T) {
	retriever := &stubRetriever{results: []retrieve.Result{{
		Evidence: goodEvidence(),
		Errors: []model.StageError{
			{Stage: "retrieving", Message: "web: connection refused", Severity: model.SeverityWarning},
		},
	}}}
	g := &stubGate{decisions: []model.GateDecision{{Sufficient: true, CoverageScore: 0.85}}}
	orch := newTestOrchestrator(retriever, g, nil, 2)

	rc, err := orch.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("Partial source failure must not fail the run: %v", err)
	}
	if rc.State != model.StateComplete {
		t.Errorf("Expected complete, got %s", rc.State)
	}
	if len(rc.Evidence) == 0 {
		t.Error("Expected surviving evidence on context")
	}
	if len(rc.StageErrors) == 0 {
		t.Error("Expected the failed call recorded as a stage error")
	}
}

func TestOrchestrator_MalformedVerificationFails(t *testing.T) {
	retriever := &stubRetriever{results: []retrieve.Result{{Evidence: goodEvidence()}}}
	g := &stubGate{decisions: []model.GateDecision{{Sufficient: true}}}
	orch := NewOrchestrator(Options{
		Expander:      &stubExpander{},
		Retriever:     retriever,
		Extractor:     &stubExtractor{outcome: extract.Outcome{Claims: goodClaims()}},
		Detector:      &stubDetector{},
		Verifier:      &stubVerifier{mismatch: true},
		Gate:          g,
		MaxIterations: 2,
	})

	rc, err := orch.Run(context.Background(), "question")
	if !errors.Is(err, ErrMalformedContext) {
		t.Fatalf("Expected ErrMalformedContext, got %v", err)
	}
	if rc.State != model.StateFailed {
		t.Errorf("Expected failed state, got %s", rc.State)
	}
	if len(rc.Evidence) == 0 {
		t.Error("Failed run must still carry partial results")
	}
}

func TestOrchestrator_OutOfRangeClaimIndexFails(t *testing.T) {
	retriever := &stubRetriever{results: []retrieve.Result{{Evidence: goodEvidence()}}}
	g := &stubGate{decisions: []model.GateDecision{{Sufficient: true}}}
	badClaims := []model.Claim{
		{Text: "claim pointing nowhere", SourceRefs: []string{"src:1"}, ChunkIndex: 9},
	}
	orch := newTestOrchestrator(retriever, g, &stubExtractor{outcome: extract.Outcome{Claims: badClaims}}, 2)

	rc, err := orch.Run(context.Background(), "question")
	if !errors.Is(err, ErrMalformedContext) {
		t.Fatalf("Expected ErrMalformedContext, got %v", err)
	}
	if rc.State != model.StateFailed {
		t.Errorf("Expected failed state, got %s", rc.State)
	}
}

func TestOrchestrator_EmptyQueryRejected(t *testing.T) {
	orch := newTestOrchestrator(&stubRetriever{results: []retrieve.Result{{}}}, &stubGate{decisions: []model.GateDecision{{Sufficient: true}}}, nil, 1)

	if _, err := orch.Run(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", err)
	}
}

func TestOrchestrator_DegradedExtractionRecorded(t *testing.T) {
	retriever := &stubRetriever{results: []retrieve.Result{{Evidence: goodEvidence()}}}
	g := &stubGate{decisions: []model.GateDecision{{Sufficient: true}}}
	orch := newTestOrchestrator(retriever, g,
		&stubExtractor{outcome: extract.Outcome{Claims: goodClaims(), Degraded: true}}, 2)

	rc, err := orch.Run(context.Background(), "question")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	found := false
	for _, se := range rc.StageErrors {
		if se.Stage == "extracting" && se.Severity == model.SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected degraded extraction recorded, got %v", rc.StageErrors)
	}
}

func TestNotifier_DropOnFullBuffer(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe(1)
	defer cancel()

	n.Publish(TransitionEvent{To: model.StateRetrieving})
	n.Publish(TransitionEvent{To: model.StateExtracting}) // Dropped

	select {
	case ev := <-ch:
		if ev.To != model.StateRetrieving {
			t.Errorf("Expected first event delivered, got %s", ev.To)
		}
	default:
		t.Fatal("Expected one buffered event")
	}

	select {
	case ev := <-ch:
		t.Errorf("Expected overflow dropped, got %s", ev.To)
	default:
	}
}

package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/noema/internal/model"
)

func renderTestRun() *model.RunContext {
	return &model.RunContext{
		RunID:         "run-42",
		Query:         "is quic faster than tcp",
		State:         model.StateComplete,
		Iteration:     1,
		MaxIterations: 2,
		Evidence: []model.EvidenceChunk{
			{Text: "quic cuts handshake round trips", SourceID: "doc-1", SourceType: model.SourceIndexed, FusedScore: 0.0328},
		},
		Claims: []model.Claim{
			{Text: "quic reduces handshake latency", SourceRefs: []string{"doc-1"}},
			{Text: "quic does not reduce handshake latency", SourceRefs: []string{"blog.example.net"}},
		},
		Contradictions: []model.Contradiction{
			{ClaimA: 0, ClaimB: 1, ConflictType: model.ConflictNegation, Confidence: 0.72},
		},
		VerifiedClaims: []model.VerifiedClaim{
			{
				Claim:             model.Claim{Text: "quic reduces handshake latency"},
				Verdict:           model.VerdictSupported,
				Confidence:        0.95,
				Tier:              model.TierAcademic,
				SupportingSources: []string{"doc-1", "arxiv.org"},
			},
			{
				Claim:      model.Claim{Text: "tcp remains dominant on the open internet"},
				Verdict:    model.VerdictUnverified,
				Confidence: 0.27,
				Tier:       model.TierGeneralWeb,
			},
		},
		Gate: &model.GateDecision{
			Sufficient:    false,
			CoverageScore: 0.55,
			Reasons:       []string{"uncovered queries: quic deployment share"},
		},
		StageErrors: []model.StageError{
			{Stage: "retrieving", Message: "web: timed out", Severity: model.SeverityWarning},
		},
		StartedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 30, 10, 0, 12, 0, time.UTC),
	}
}

func TestRenderer_Markdown(t *testing.T) {
	md := NewRenderer(true).Markdown(renderTestRun())

	for _, want := range []string{
		"**Question:** is quic faster than tcp",
		"**Run:** `run-42` | **Status:** complete | **Iterations:** 1/2",
		"**Coverage:** 0.55 (below threshold)",
		"- uncovered queries: quic deployment share",
		"## Findings (2)",
		"## Contradictions (1)",
		"\"quic reduces handshake latency\" vs \"quic does not reduce handshake latency\"",
		"## Evidence (1 chunks)",
		"1. `doc-1` (indexed-document, fused 0.0328)",
		"## Stage Errors (1)",
		"- [retrieving/warning] web: timed out",
		"Generated by noema in 12s",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q\n---\n%s", want, md)
		}
	}
}

func TestRenderer_Markdown_FindingsSortedByConfidence(t *testing.T) {
	md := NewRenderer(false).Markdown(renderTestRun())

	supported := strings.Index(md, "quic reduces handshake latency")
	unverified := strings.Index(md, "tcp remains dominant")
	if supported < 0 || unverified < 0 {
		t.Fatal("Expected both findings in the report")
	}
	if supported > unverified {
		t.Error("Expected higher-confidence finding to render first")
	}
	if strings.Contains(md, "Generated by noema") {
		t.Error("Footer rendered with includeFooter=false")
	}
}

func TestRenderer_RenderJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := NewRenderer(false).RenderJSON(renderTestRun(), path); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var rc model.RunContext
	if err := json.Unmarshal(data, &rc); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if rc.RunID != "run-42" || rc.State != model.StateComplete {
		t.Errorf("Round-tripped run = %s/%s, want run-42/complete", rc.RunID, rc.State)
	}
	if len(rc.VerifiedClaims) != 2 {
		t.Errorf("Expected 2 verified claims after round trip, got %d", len(rc.VerifiedClaims))
	}
}

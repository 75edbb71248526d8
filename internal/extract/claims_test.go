package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/noema/internal/llm"
	"github.com/ppiankov/noema/internal/model"
)

type stubProvider struct {
	text string
	err  error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Text: s.text}, nil
}

func (s *stubProvider) IsAvailable(_ context.Context) bool { return true }

func evidenceChunk(text, sourceID string) model.EvidenceChunk {
	return model.EvidenceChunk{Text: text, SourceID: sourceID, SourceType: model.SourceIndexed}
}

func TestExtractor_PatternFallback(t *testing.T) {
	extractor := NewExtractor(nil, nil)
	evidence := []model.EvidenceChunk{
		evidenceChunk("The new congestion controller reduces tail latency under load. The sky was clear yesterday afternoon in town.", "src:1"),
	}

	outcome := extractor.Extract(context.Background(), "congestion control", evidence)
	if outcome.Degraded {
		t.Error("No provider configured: pattern path is primary, not degraded")
	}
	if len(outcome.Claims) != 1 {
		t.Fatalf("Expected 1 pattern claim, got %d", len(outcome.Claims))
	}

	claim := outcome.Claims[0]
	if !strings.Contains(claim.Text, "reduces tail latency") {
		t.Errorf("Unexpected claim text: %q", claim.Text)
	}
	if claim.ChunkIndex != 0 {
		t.Errorf("Expected chunk index 0, got %d", claim.ChunkIndex)
	}
	if len(claim.SourceRefs) != 1 || claim.SourceRefs[0] != "src:1" {
		t.Errorf("Expected source ref src:1, got %v", claim.SourceRefs)
	}
	if !strings.HasPrefix(claim.Heuristic, "pattern:") {
		t.Errorf("Expected pattern heuristic, got %q", claim.Heuristic)
	}
}

func TestExtractor_PatternKinds(t *testing.T) {
	extractor := NewExtractor(nil, nil)
	tests := []struct {
		name     string
		sentence string
	}{
		{"percent", "Adoption of the standard grew by 45% over two years."},
		{"evidence", "The study demonstrates a clear link between caching and throughput."},
		{"regulatory", "Operators must rotate credentials every ninety days."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evidence := []model.EvidenceChunk{evidenceChunk(tt.sentence, "src")}
			outcome := extractor.Extract(context.Background(), "q", evidence)
			if len(outcome.Claims) != 1 {
				t.Fatalf("Expected 1 claim from %q, got %d", tt.sentence, len(outcome.Claims))
			}
		})
	}
}

func TestExtractor_LLMPath(t *testing.T) {
	provider := &stubProvider{text: `Here you go:
[{"claim": "QUIC encrypts transport headers by default", "chunk_index": 0, "confidence": 0.9},
 {"claim": "Out of range entry", "chunk_index": 7, "confidence": 0.9},
 {"claim": "", "chunk_index": 0, "confidence": 0.5}]`}

	extractor := NewExtractor(provider, nil)
	evidence := []model.EvidenceChunk{
		evidenceChunk("QUIC encrypts nearly all transport header fields.", "src:1"),
	}

	outcome := extractor.Extract(context.Background(), "quic", evidence)
	if outcome.Degraded {
		t.Error("Expected generative path to succeed")
	}
	if len(outcome.Claims) != 1 {
		t.Fatalf("Expected invalid entries filtered, got %d claims", len(outcome.Claims))
	}
	if outcome.Claims[0].Heuristic != "llm" {
		t.Errorf("Expected llm heuristic, got %q", outcome.Claims[0].Heuristic)
	}
	if outcome.Claims[0].SourceRefs[0] != "src:1" {
		t.Errorf("Claim provenance wrong: %v", outcome.Claims[0].SourceRefs)
	}
}

func TestExtractor_LLMFailureDegrades(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider down")}
	extractor := NewExtractor(provider, nil)
	evidence := []model.EvidenceChunk{
		evidenceChunk("Compression reduces payload size significantly in practice.", "src:1"),
	}

	outcome := extractor.Extract(context.Background(), "compression", evidence)
	if !outcome.Degraded {
		t.Error("Expected degraded outcome when provider fails")
	}
	if len(outcome.Claims) == 0 {
		t.Error("Expected pattern fallback to still produce claims")
	}
}

func TestExtractor_EmptyEvidence(t *testing.T) {
	extractor := NewExtractor(nil, nil)
	outcome := extractor.Extract(context.Background(), "q", nil)
	if outcome.Claims == nil || len(outcome.Claims) != 0 {
		t.Errorf("Expected empty non-nil claims, got %v", outcome.Claims)
	}
}

func TestExtractor_DeduplicatesClaims(t *testing.T) {
	extractor := NewExtractor(nil, nil)
	sentence := "The migration reduces operating costs across all regions."
	evidence := []model.EvidenceChunk{
		evidenceChunk(sentence, "src:1"),
		evidenceChunk(sentence, "src:2"),
	}

	outcome := extractor.Extract(context.Background(), "q", evidence)
	if len(outcome.Claims) != 1 {
		t.Errorf("Expected duplicate claim texts collapsed, got %d", len(outcome.Claims))
	}
}

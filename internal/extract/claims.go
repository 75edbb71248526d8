package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/noema/internal/llm"
	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/textutil"
)

// Extractor turns evidence chunks into atomic, independently-verifiable
// claims. The generative path is tried first when a provider is
// configured; the deterministic pattern path always runs as fallback,
// producing coarser but non-empty claims rather than none.
type Extractor struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewExtractor creates a claim extractor
func NewExtractor(provider llm.Provider, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: provider, logger: logger}
}

// Outcome reports which extraction path produced the claims
type Outcome struct {
	Claims   []model.Claim
	Degraded bool // Primary generative path failed; pattern fallback used
}

// Extract parses evidence into claims. Never returns an error: a failed
// generative path degrades to the pattern extractor.
func (e *Extractor) Extract(ctx context.Context, query string, evidence []model.EvidenceChunk) Outcome {
	if len(evidence) == 0 {
		return Outcome{Claims: []model.Claim{}}
	}

	if e.provider != nil {
		claims, err := e.extractViaLLM(ctx, query, evidence)
		if err == nil && len(claims) > 0 {
			return Outcome{Claims: claims}
		}
		if err != nil {
			e.logger.Warn("generative claim extraction failed, using pattern fallback", zap.Error(err))
		}
		return Outcome{Claims: e.extractPatterns(evidence), Degraded: true}
	}

	return Outcome{Claims: e.extractPatterns(evidence)}
}

// llmClaim is the schema the model must produce. Validation happens at
// this boundary; nothing unvalidated reaches the run context.
type llmClaim struct {
	Claim      string  `json:"claim"`
	ChunkIndex int     `json:"chunk_index"`
	Confidence float64 `json:"confidence"`
}

func (e *Extractor) extractViaLLM(ctx context.Context, query string, evidence []model.EvidenceChunk) ([]model.Claim, error) {
	var sb strings.Builder
	charBudget := 3500
	used := 0
	for i, chunk := range evidence {
		text := chunk.Text
		if len(text) > 400 {
			text = text[:400]
		}
		block := fmt.Sprintf("[Chunk %d: %s (%s)]\n%s\n\n", i, chunk.SourceID, chunk.SourceType, text)
		if used+len(block) > charBudget {
			break
		}
		sb.WriteString(block)
		used += len(block)
	}

	prompt := fmt.Sprintf(`Extract factual claims from the following source material that are relevant to the research query.

Research query: %s

Source material:
%s
Output a JSON array of objects like:
[{"claim": "the factual statement", "chunk_index": 0, "confidence": 0.75}]

chunk_index is the number from the [Chunk N: ...] tag the claim came from. Each claim must be a single, independently verifiable statement.`, query, sb.String())

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      "You are a research analyst extracting verifiable factual claims.",
		Prompt:      prompt,
		MaxTokens:   800,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	var raw []llmClaim
	if err := llm.DecodeArray(resp.Text, &raw); err != nil {
		return nil, err
	}

	var claims []model.Claim
	for _, item := range raw {
		text := strings.TrimSpace(item.Claim)
		if text == "" {
			continue
		}
		if item.ChunkIndex < 0 || item.ChunkIndex >= len(evidence) {
			continue
		}
		claims = append(claims, model.Claim{
			Text:       text,
			SourceRefs: []string{evidence[item.ChunkIndex].SourceID},
			ChunkIndex: item.ChunkIndex,
			Heuristic:  "llm",
		})
	}
	return dedupeClaims(claims), nil
}

// claimPatterns flag sentences that assert something checkable
var claimPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"percent", regexp.MustCompile(`\d+[.\d]*\s*%`)},
	{"strength", regexp.MustCompile(`(?i)significantly|dramatically|substantially`)},
	{"causal", regexp.MustCompile(`(?i)reduces?|increases?|improves?|outperforms?|prevents?|causes?`)},
	{"evidence", regexp.MustCompile(`(?i)shows?|demonstrates?|found|suggests?|indicates?`)},
	{"regulatory", regexp.MustCompile(`(?i)requires?|must|shall|mandatory`)},
	{"definitional", regexp.MustCompile(`(?i)is defined as|is a|are a|consists? of`)},
}

// extractPatterns is the deterministic fallback: sentence-level pattern
// matching over every chunk.
func (e *Extractor) extractPatterns(evidence []model.EvidenceChunk) []model.Claim {
	var claims []model.Claim
	for idx, chunk := range evidence {
		for _, sentence := range textutil.SplitSentences(chunk.Text) {
			for _, pattern := range claimPatterns {
				if pattern.re.MatchString(sentence) {
					claims = append(claims, model.Claim{
						Text:       strings.TrimSpace(sentence),
						SourceRefs: []string{chunk.SourceID},
						ChunkIndex: idx,
						Heuristic:  "pattern:" + pattern.name,
					})
					break // One claim per sentence
				}
			}
		}
	}
	return dedupeClaims(claims)
}

// dedupeClaims drops repeated claim texts, keeping first occurrence
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	out := make([]model.Claim, 0, len(claims))
	for _, c := range claims {
		key := strings.ToLower(c.Text)
		if !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}

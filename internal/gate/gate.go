// Package gate decides whether accumulated evidence is sufficient to
// report on, or whether the pipeline should spend another retrieval
// iteration filling the gaps it names.
package gate

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/textutil"
)

// queryCoverageOverlap is the fraction of a query's content tokens
// that a claim must mention for the query to count as covered
const queryCoverageOverlap = 0.3

// contradictionPenalty is subtracted per unresolved contradiction
const contradictionPenalty = 0.05

// Gate scores evidence sufficiency against a configurable threshold
type Gate struct {
	threshold float64
	logger    *zap.Logger
}

// NewGate creates a gate with the given coverage threshold
func NewGate(threshold float64, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{threshold: threshold, logger: logger}
}

// Evaluate computes the coverage score and the sufficiency decision.
// Reasons name the specific gaps so a refinement pass can target them.
func (g *Gate) Evaluate(rc *model.RunContext) model.GateDecision {
	queries := rc.ExpandedQueries
	if len(queries) == 0 {
		queries = []string{rc.Query}
	}

	covered, uncovered := splitCovered(queries, rc.VerifiedClaims)
	queryCoverage := float64(len(covered)) / float64(len(queries))

	verifiedFraction := 0.0
	weakClaims := 0
	if len(rc.VerifiedClaims) > 0 {
		strong := 0
		for _, vc := range rc.VerifiedClaims {
			switch vc.Verdict {
			case model.VerdictSupported, model.VerdictLikely:
				strong++
			default:
				weakClaims++
			}
		}
		verifiedFraction = float64(strong) / float64(len(rc.VerifiedClaims))
	}

	unresolved := len(rc.Contradictions)

	score := 0.5*queryCoverage + 0.5*verifiedFraction - contradictionPenalty*float64(unresolved)
	if score < 0 {
		score = 0
	}

	decision := model.GateDecision{
		Sufficient:    score >= g.threshold,
		CoverageScore: score,
		Uncovered:     sortedCopy(uncovered),
	}

	if !decision.Sufficient {
		decision.Reasons = reasons(decision.Uncovered, weakClaims, unresolved, len(rc.Evidence))
	}

	g.logger.Info("gate evaluated",
		zap.Float64("score", score),
		zap.Float64("threshold", g.threshold),
		zap.Bool("sufficient", decision.Sufficient),
		zap.Int("uncovered_queries", len(uncovered)),
		zap.Int("contradictions", unresolved))

	return decision
}

// splitCovered partitions queries into covered and uncovered by
// checking whether any claim addresses enough of the query. Raw
// evidence does not count: a query is only covered once extraction
// produced a claim for it.
func splitCovered(queries []string, claims []model.VerifiedClaim) (covered, uncovered []string) {
	for _, query := range queries {
		tokens := textutil.ContentTokens(query)
		if len(tokens) == 0 {
			covered = append(covered, query)
			continue
		}
		hit := false
		for _, vc := range claims {
			if queryOverlap(tokens, vc.Claim.Text) >= queryCoverageOverlap {
				hit = true
				break
			}
		}
		if hit {
			covered = append(covered, query)
		} else {
			uncovered = append(uncovered, query)
		}
	}
	return covered, uncovered
}

func sortedCopy(queries []string) []string {
	if len(queries) == 0 {
		return nil
	}
	out := append([]string(nil), queries...)
	sort.Strings(out)
	return out
}

func queryOverlap(queryTokens map[string]struct{}, text string) float64 {
	chunkTokens := textutil.ContentTokens(text)
	hits := 0
	for token := range queryTokens {
		if _, ok := chunkTokens[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func reasons(uncovered []string, weakClaims, unresolved, evidenceCount int) []string {
	var out []string
	if evidenceCount == 0 {
		out = append(out, "no evidence retrieved")
	}
	if len(uncovered) > 0 {
		out = append(out, fmt.Sprintf("uncovered queries: %s", strings.Join(uncovered, "; ")))
	}
	if weakClaims > 0 {
		out = append(out, fmt.Sprintf("%d claims lack independent corroboration", weakClaims))
	}
	if unresolved > 0 {
		out = append(out, fmt.Sprintf("%d unresolved contradictions", unresolved))
	}
	return out
}

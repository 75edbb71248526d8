// Package verify scores extracted claims against the evidence pool:
// it counts independent supporting sources, classifies their
// credibility tiers, assigns verdicts and a confidence score, and
// downgrades claims contradicted by higher-tier material.
package verify

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/textutil"
)

// supportOverlap is the fraction of a claim's content tokens that must
// appear in a chunk for the chunk's source to count as supporting
const supportOverlap = 0.5

// unverifiedDamping replaces the agreement factor for single low-tier
// sources: one weak source earns less trust than the generic formula
// would grant it
const unverifiedDamping = 0.6

// Verifier assigns verdicts and confidence scores to claims
type Verifier struct {
	classifier *Classifier
	logger     *zap.Logger
}

// NewVerifier creates a verifier with the given tier classifier
func NewVerifier(classifier *Classifier, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{classifier: classifier, logger: logger}
}

// support is the per-claim evidence tally computed in the first pass
type support struct {
	sources  []string // Distinct supporting source IDs, sorted
	bestTier model.CredibilityTier
}

// Verify scores every claim. Output order matches input claim order.
func (v *Verifier) Verify(claims []model.Claim, contradictions []model.Contradiction, evidence []model.EvidenceChunk) []model.VerifiedClaim {
	if len(claims) == 0 {
		return nil
	}

	tiers := make([]model.CredibilityTier, len(evidence))
	for i, chunk := range evidence {
		tiers[i] = v.classifier.Classify(chunk)
	}

	supports := make([]support, len(claims))
	for i, claim := range claims {
		supports[i] = v.supportFor(claim, evidence, tiers)
	}

	// A claim is disputed when any contradicting claim rests on a
	// strictly higher tier. Tier numbers rank 1 (best) through 5;
	// user-uploaded content never outranks external sources.
	disputedBy := make(map[int][]int)
	for _, con := range contradictions {
		a, b := con.ClaimA, con.ClaimB
		if a < 0 || a >= len(claims) || b < 0 || b >= len(claims) {
			continue
		}
		if outranks(supports[a].bestTier, supports[b].bestTier) {
			disputedBy[b] = append(disputedBy[b], a)
		}
		if outranks(supports[b].bestTier, supports[a].bestTier) {
			disputedBy[a] = append(disputedBy[a], b)
		}
	}

	verified := make([]model.VerifiedClaim, len(claims))
	for i, claim := range claims {
		sup := supports[i]
		n := len(sup.sources)

		verdict := verdictFor(n, sup.bestTier)

		var contradicting []string
		if opponents, ok := disputedBy[i]; ok {
			verdict = model.VerdictDisputed
			contradicting = opposingSources(opponents, supports)
		}

		verified[i] = model.VerifiedClaim{
			Claim:                claim,
			Verdict:              verdict,
			Confidence:           confidence(sup.bestTier, n, verdict),
			SupportingSources:    sup.sources,
			ContradictingSources: contradicting,
			Tier:                 sup.bestTier,
		}
	}

	v.logger.Debug("verified claims",
		zap.Int("claims", len(claims)),
		zap.Int("disputed", len(disputedBy)))

	return verified
}

// supportFor collects the distinct sources backing a claim: the ones
// recorded at extraction, plus any chunk sharing enough of the claim's
// content tokens
func (v *Verifier) supportFor(claim model.Claim, evidence []model.EvidenceChunk, tiers []model.CredibilityTier) support {
	seen := make(map[string]bool)
	bestTier := model.TierUnknown

	record := func(sourceID string, tier model.CredibilityTier) {
		if sourceID == "" {
			return
		}
		if !seen[sourceID] {
			seen[sourceID] = true
		}
		if tier != model.TierUnknown && outranksOrEqual(tier, bestTier) {
			bestTier = tier
		}
	}

	for _, ref := range claim.SourceRefs {
		tier := model.TierUnknown
		for i, chunk := range evidence {
			if chunk.SourceID == ref {
				tier = tiers[i]
				break
			}
		}
		record(ref, tier)
	}

	claimTokens := textutil.ContentTokens(claim.Text)
	if len(claimTokens) > 0 {
		for i, chunk := range evidence {
			if seen[chunk.SourceID] {
				continue
			}
			if overlapFraction(claimTokens, chunk.Text) >= supportOverlap {
				record(chunk.SourceID, tiers[i])
			}
		}
	}

	sources := make([]string, 0, len(seen))
	for id := range seen {
		sources = append(sources, id)
	}
	sort.Strings(sources)

	if bestTier == model.TierUnknown {
		bestTier = model.TierGeneralWeb
	}
	return support{sources: sources, bestTier: bestTier}
}

// overlapFraction returns the fraction of claim tokens present in text
func overlapFraction(claimTokens map[string]struct{}, text string) float64 {
	chunkTokens := textutil.ContentTokens(text)
	if len(claimTokens) == 0 {
		return 0
	}
	hits := 0
	for token := range claimTokens {
		if _, ok := chunkTokens[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(claimTokens))
}

func verdictFor(n int, tier model.CredibilityTier) model.Verdict {
	switch {
	case n >= 3:
		return model.VerdictSupported
	case n == 2:
		return model.VerdictLikely
	case n == 1 && tier <= model.TierOfficial && tier != model.TierUnknown:
		return model.VerdictPlausible
	default:
		return model.VerdictUnverified
	}
}

// confidence combines the best tier's base score with an agreement
// factor that grows with source count and saturates at 1.0
func confidence(tier model.CredibilityTier, n int, verdict model.Verdict) float64 {
	base := tier.BaseScore()

	agreement := 0.5 + 0.2*float64(n)
	if agreement > 1.0 {
		agreement = 1.0
	}
	if verdict == model.VerdictUnverified {
		agreement = unverifiedDamping
	}

	score := base * agreement
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// outranks reports whether tier a is strictly more credible than b.
// User-uploaded (6) ranks below every external tier.
func outranks(a, b model.CredibilityTier) bool {
	return tierRank(a) < tierRank(b)
}

func outranksOrEqual(a, b model.CredibilityTier) bool {
	return tierRank(a) <= tierRank(b)
}

// tierRank orders tiers most-credible-first, slotting user-uploaded
// content between general blogs and the unverified web to match its
// base score
func tierRank(t model.CredibilityTier) int {
	switch t {
	case model.TierUserUploaded:
		return 5
	case model.TierGeneralWeb:
		return 6
	case model.TierUnknown:
		return 7
	default:
		return int(t)
	}
}

func opposingSources(opponents []int, supports []support) []string {
	seen := make(map[string]bool)
	var out []string
	for _, idx := range opponents {
		for _, src := range supports[idx].sources {
			if !seen[src] {
				seen[src] = true
				out = append(out, src)
			}
		}
	}
	sort.Strings(out)
	return out
}

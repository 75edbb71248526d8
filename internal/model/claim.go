package model

// Claim is an atomic, independently-verifiable factual statement
// extracted from evidence. Claims are never mutated after creation;
// verification wraps them in a VerifiedClaim instead.
type Claim struct {
	Text       string   `json:"text"`
	SourceRefs []string `json:"source_refs"`         // Source IDs supporting extraction
	ChunkIndex int      `json:"chunk_index"`         // Index into RunContext.Evidence (provenance)
	Heuristic  string   `json:"heuristic,omitempty"` // Extraction path that produced it (e.g., "llm", "pattern:numeric")
}

// ConflictType categorizes how two claims disagree
type ConflictType string

const (
	ConflictNegation ConflictType = "negation" // One claim negates the other's predicate
	ConflictNumeric  ConflictType = "numeric"  // Same metric, different numbers
	ConflictTemporal ConflictType = "temporal" // Same event, different dates
	ConflictSemantic ConflictType = "semantic" // Opposing direction words on a shared topic
)

// Contradiction records a detected conflict between two claims.
// A claim may appear in multiple contradictions.
type Contradiction struct {
	ClaimA       int          `json:"claim_a"` // Index into RunContext.Claims
	ClaimB       int          `json:"claim_b"`
	ConflictType ConflictType `json:"conflict_type"`
	Confidence   float64      `json:"confidence"` // 0-1; only emitted when > 0.6
	Detail       string       `json:"detail,omitempty"`
}

// Verdict is the credibility verdict assigned to a claim
type Verdict string

const (
	VerdictSupported  Verdict = "supported"  // 3+ independent sources
	VerdictLikely     Verdict = "likely"     // 2 independent sources
	VerdictPlausible  Verdict = "plausible"  // 1 high-tier source
	VerdictUnverified Verdict = "unverified" // 1 low-tier source
	VerdictDisputed   Verdict = "disputed"   // Contradicted by a higher-tier claim
)

// VerifiedClaim wraps a Claim with the credibility scorer's output
type VerifiedClaim struct {
	Claim                Claim           `json:"claim"`
	Verdict              Verdict         `json:"verdict"`
	Confidence           float64         `json:"confidence"` // Always clamped to [0, 1]
	SupportingSources    []string        `json:"supporting_sources"`
	ContradictingSources []string        `json:"contradicting_sources,omitempty"`
	Tier                 CredibilityTier `json:"tier"` // Highest tier among supporting sources
}

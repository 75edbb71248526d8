package extract

import (
	"testing"

	"github.com/ppiankov/noema/internal/model"
)

func claimFrom(text, source string) model.Claim {
	return model.Claim{Text: text, SourceRefs: []string{source}}
}

func TestDetector_NegationConflict(t *testing.T) {
	detector := NewDetector()
	claims := []model.Claim{
		claimFrom("The rollout is reversible after activation", "a"),
		claimFrom("The rollout is not reversible after activation", "b"),
	}

	contradictions := detector.Detect(claims)
	if len(contradictions) != 1 {
		t.Fatalf("Expected 1 contradiction, got %d", len(contradictions))
	}

	c := contradictions[0]
	if c.ConflictType != model.ConflictNegation {
		t.Errorf("Expected negation conflict, got %s", c.ConflictType)
	}
	if c.Confidence <= 0.6 {
		t.Errorf("Expected confidence above emit threshold, got %v", c.Confidence)
	}
	if c.ClaimA == c.ClaimB {
		t.Error("Contradiction references the same claim twice")
	}
}

func TestDetector_NumericConflict(t *testing.T) {
	detector := NewDetector()
	claims := []model.Claim{
		claimFrom("The cache hit rate reached 95 percent in production", "a"),
		claimFrom("Cache hit rate was measured at 70 percent in production", "b"),
	}

	contradictions := detector.Detect(claims)
	if len(contradictions) != 1 {
		t.Fatalf("Expected 1 contradiction, got %d", len(contradictions))
	}
	if contradictions[0].ConflictType != model.ConflictNumeric {
		t.Errorf("Expected numeric conflict, got %s", contradictions[0].ConflictType)
	}
}

func TestDetector_NumericWithinTolerance(t *testing.T) {
	detector := NewDetector()
	// 100 vs 101 is under the 2% relative tolerance
	claims := []model.Claim{
		claimFrom("The benchmark completed 100 requests per second sustained", "a"),
		claimFrom("The benchmark completed 101 requests per second sustained", "b"),
	}

	if got := detector.Detect(claims); len(got) != 0 {
		t.Errorf("Expected numbers within tolerance to pass, got %d contradictions", len(got))
	}
}

func TestDetector_TemporalConflict(t *testing.T) {
	detector := NewDetector()
	claims := []model.Claim{
		claimFrom("The protocol was standardized in 2013 by the group", "a"),
		claimFrom("The protocol was standardized in 2021 by the group", "b"),
	}

	contradictions := detector.Detect(claims)
	if len(contradictions) != 1 {
		t.Fatalf("Expected 1 contradiction, got %d", len(contradictions))
	}
	if contradictions[0].ConflictType != model.ConflictTemporal {
		t.Errorf("Expected temporal conflict, got %s", contradictions[0].ConflictType)
	}
}

func TestDetector_SharedYearIsAgreement(t *testing.T) {
	detector := NewDetector()
	claims := []model.Claim{
		claimFrom("The protocol was standardized in 2021 by the group", "a"),
		claimFrom("The protocol was standardized in 2021 after review", "b"),
	}

	if got := detector.Detect(claims); len(got) != 0 {
		t.Errorf("Expected shared year to count as agreement, got %d contradictions", len(got))
	}
}

func TestDetector_BelowEmitThreshold(t *testing.T) {
	detector := NewDetector()
	// Semantic opposition with just enough overlap to cluster: base 0.40
	// plus the overlap scaling stays at or under 0.6 and is dropped
	claims := []model.Claim{
		claimFrom("scheduler kernel threads run faster when preemption budget grows significantly today", "a"),
		claimFrom("scheduler kernel threads appear slower across mixed database workloads during peak hours", "b"),
	}

	if got := detector.Detect(claims); len(got) != 0 {
		t.Errorf("Expected weak detection to be suppressed, got %d contradictions", len(got))
	}
}

func TestDetector_SameSourceSkipped(t *testing.T) {
	detector := NewDetector()
	claims := []model.Claim{
		claimFrom("The rollout is reversible after activation", "same"),
		claimFrom("The rollout is not reversible after activation", "same"),
	}

	if got := detector.Detect(claims); len(got) != 0 {
		t.Errorf("Expected same-source pair to be skipped, got %d contradictions", len(got))
	}
}

func TestDetector_UnclusteredClaimsNotCompared(t *testing.T) {
	detector := NewDetector()
	claims := []model.Claim{
		claimFrom("Solar capacity does not expand without subsidies", "a"),
		claimFrom("Quicksort averages n log n comparisons on random input", "b"),
	}

	if got := detector.Detect(claims); len(got) != 0 {
		t.Errorf("Expected unrelated claims to stay uncompared, got %d contradictions", len(got))
	}
}

func TestDetector_FewerThanTwoClaims(t *testing.T) {
	detector := NewDetector()
	if got := detector.Detect(nil); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", got)
	}
	one := []model.Claim{claimFrom("A single claim stands alone here", "a")}
	if got := detector.Detect(one); len(got) != 0 {
		t.Errorf("Expected no contradictions for one claim, got %d", len(got))
	}
}

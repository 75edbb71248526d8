package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/noema/internal/model"
)

// Renderer writes a finished run as JSON or Markdown
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the full run context as indented JSON
func (r *Renderer) RenderJSON(rc *model.RunContext, path string) error {
	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes a human-readable research report
func (r *Renderer) RenderMarkdown(rc *model.RunContext, path string) error {
	return os.WriteFile(path, []byte(r.Markdown(rc)), 0644)
}

// Markdown builds the report text
func (r *Renderer) Markdown(rc *model.RunContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Research Report\n\n")
	fmt.Fprintf(&sb, "**Question:** %s\n\n", rc.Query)
	fmt.Fprintf(&sb, "**Run:** `%s` | **Status:** %s | **Iterations:** %d/%d\n\n",
		rc.RunID, rc.State, rc.Iteration, rc.MaxIterations)

	if rc.Gate != nil {
		fmt.Fprintf(&sb, "**Coverage:** %.2f", rc.Gate.CoverageScore)
		if rc.Gate.Sufficient {
			sb.WriteString(" (sufficient)\n\n")
		} else {
			sb.WriteString(" (below threshold)\n\n")
			for _, reason := range rc.Gate.Reasons {
				fmt.Fprintf(&sb, "- %s\n", reason)
			}
			sb.WriteString("\n")
		}
	}

	if rc.Brief != "" {
		fmt.Fprintf(&sb, "## Brief\n\n%s\n\n", rc.Brief)
	}

	if len(rc.VerifiedClaims) > 0 {
		fmt.Fprintf(&sb, "## Findings (%d)\n\n", len(rc.VerifiedClaims))
		for _, vc := range sortByConfidence(rc.VerifiedClaims) {
			fmt.Fprintf(&sb, "- **%s** (%.2f, %s): %s\n",
				vc.Verdict, vc.Confidence, vc.Tier, vc.Claim.Text)
			if len(vc.SupportingSources) > 0 {
				fmt.Fprintf(&sb, "  - sources: %s\n", strings.Join(vc.SupportingSources, ", "))
			}
			if len(vc.ContradictingSources) > 0 {
				fmt.Fprintf(&sb, "  - contradicted by: %s\n", strings.Join(vc.ContradictingSources, ", "))
			}
		}
		sb.WriteString("\n")
	}

	if len(rc.Contradictions) > 0 {
		fmt.Fprintf(&sb, "## Contradictions (%d)\n\n", len(rc.Contradictions))
		for _, con := range rc.Contradictions {
			a, b := claimText(rc, con.ClaimA), claimText(rc, con.ClaimB)
			fmt.Fprintf(&sb, "- [%s, %.2f] %q vs %q\n", con.ConflictType, con.Confidence, a, b)
		}
		sb.WriteString("\n")
	}

	if len(rc.Evidence) > 0 {
		fmt.Fprintf(&sb, "## Evidence (%d chunks)\n\n", len(rc.Evidence))
		for i, chunk := range rc.Evidence {
			fmt.Fprintf(&sb, "%d. `%s` (%s, fused %.4f)\n", i+1, chunk.SourceID, chunk.SourceType, chunk.FusedScore)
		}
		sb.WriteString("\n")
	}

	if len(rc.StageErrors) > 0 {
		fmt.Fprintf(&sb, "## Stage Errors (%d)\n\n", len(rc.StageErrors))
		for _, se := range rc.StageErrors {
			fmt.Fprintf(&sb, "- [%s/%s] %s\n", se.Stage, se.Severity, se.Message)
		}
		sb.WriteString("\n")
	}

	if r.includeFooter {
		took := rc.FinishedAt.Sub(rc.StartedAt).Round(1e7)
		fmt.Fprintf(&sb, "---\n\nGenerated by noema in %v\n", took)
	}

	return sb.String()
}

func sortByConfidence(claims []model.VerifiedClaim) []model.VerifiedClaim {
	out := append([]model.VerifiedClaim(nil), claims...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func claimText(rc *model.RunContext, idx int) string {
	if idx < 0 || idx >= len(rc.Claims) {
		return ""
	}
	return rc.Claims[idx].Text
}

package expand

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/noema/internal/llm"
)

// Expander generates query variants for multi-query retrieval. The
// original query is always the first, canonical variant. An LLM is
// tried first when configured; the template path always works.
type Expander struct {
	provider llm.Provider // nil when the generative assist is disabled
	max      int
	logger   *zap.Logger
}

// NewExpander creates an expander producing at most max variants
func NewExpander(provider llm.Provider, max int, logger *zap.Logger) *Expander {
	if max <= 0 {
		max = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{provider: provider, max: max, logger: logger}
}

// Expand returns query variants, the canonical query first
func (e *Expander) Expand(ctx context.Context, query string) []string {
	if e.provider != nil {
		if variants := e.expandViaLLM(ctx, query); len(variants) > 0 {
			return variants
		}
	}
	return e.expandTemplates(query)
}

func (e *Expander) expandViaLLM(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(`Given the following research question, output exactly %d alternative phrasings that would help retrieve relevant documents from a search engine. Each line must be one short search query (no numbering, no bullets). Include the original question as the first line.

Original question: %s

Alternative search queries (one per line):`, e.max, query)

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System:      "You are a research query expander.",
		Prompt:      prompt,
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		e.logger.Warn("query expansion via LLM failed", zap.Error(err))
		return nil
	}

	var variants []string
	seen := make(map[string]bool)
	for _, line := range llm.Lines(resp.Text) {
		if !seen[line] {
			seen[line] = true
			variants = append(variants, line)
		}
	}
	if len(variants) == 0 {
		return nil
	}

	// The canonical query leads regardless of what the model returned
	if variants[0] != query {
		deduped := []string{query}
		for _, v := range variants {
			if v != query {
				deduped = append(deduped, v)
			}
		}
		variants = deduped
	}

	if len(variants) > e.max {
		variants = variants[:e.max]
	}
	return variants
}

// expandTemplates is the deterministic fallback: fill a few fixed
// phrasings with the query's core topic.
func (e *Expander) expandTemplates(query string) []string {
	variants := []string{query}
	templates := []string{
		"what is %s and how does it work",
		"%s key concepts and techniques",
		"advantages and challenges of %s",
		"recent developments in %s",
		"practical applications of %s",
	}

	topic := extractTopic(query)
	for _, tmpl := range templates {
		if len(variants) >= e.max {
			break
		}
		variant := fmt.Sprintf(tmpl, topic)
		if variant != query {
			variants = append(variants, variant)
		}
	}
	return variants
}

// extractTopic strips leading question scaffolding and trailing
// punctuation from a query
func extractTopic(query string) string {
	topic := strings.ToLower(strings.TrimSpace(query))
	prefixes := []string{
		"how does ", "how do ", "how is ", "how are ", "how to ",
		"what is ", "what are ", "what does ", "what do ",
		"why does ", "why do ", "why is ", "why are ",
		"does ", "do ", "is ", "are ",
		"explain ", "describe ", "tell me about ", "compare ", "define ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(topic, prefix) {
			topic = strings.TrimPrefix(topic, prefix)
			break
		}
	}
	return strings.TrimRight(topic, "?!. ")
}

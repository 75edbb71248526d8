package source

import (
	"context"
	"fmt"

	"github.com/ppiankov/noema/internal/cache"
	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/worker"
)

// Source is the uniform search capability over heterogeneous evidence
// backends. Callers never learn whether a source is a vector index, a
// live web search, or a local document directory.
type Source interface {
	// Name returns the registry name ("index", "web", "uploads")
	Name() string

	// Type classifies chunks this source produces
	Type() model.SourceType

	// Search returns up to topK ranked chunks for the query.
	// Returned chunks carry raw_score only; fused_score is assigned
	// later by the fusion ranker.
	Search(ctx context.Context, query string, topK int) ([]model.EvidenceChunk, error)
}

// Registry holds the sources enabled for a run, in priority order.
// Resolved once at startup; the orchestrator never does string-keyed
// dispatch at call time.
type Registry struct {
	order   []string
	sources map[string]Source
}

// NewRegistry builds the registry from configuration. Source order in
// cfg.Sources.Enabled is preserved: it is the dedup tie-break order
// during fusion.
func NewRegistry(cfg *model.Config, resultCache cache.Cache, limiter *worker.Limiter) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source)}

	for _, name := range cfg.Sources.Enabled {
		var src Source
		switch name {
		case "index":
			src = NewIndexSource(cfg.Sources.Index, cfg.HTTP)
		case "web":
			src = NewWebSource(cfg.Sources.Web, cfg.HTTP, resultCache, limiter)
		case "uploads":
			src = NewUploadSource(cfg.Sources.Uploads.Dir)
		default:
			return nil, fmt.Errorf("unknown evidence source: %s (supported: index, web, uploads)", name)
		}
		if _, dup := r.sources[name]; dup {
			return nil, fmt.Errorf("duplicate evidence source: %s", name)
		}
		r.order = append(r.order, name)
		r.sources[name] = src
	}

	if len(r.order) == 0 {
		return nil, fmt.Errorf("no evidence sources enabled")
	}

	return r, nil
}

// Ordered returns the sources in priority order
func (r *Registry) Ordered() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

// Names returns the source names in priority order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Rank returns a source's position in priority order (lower wins ties)
func (r *Registry) Rank(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return len(r.order)
}

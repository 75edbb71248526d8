package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/noema/internal/cache"
	"github.com/ppiankov/noema/internal/expand"
	"github.com/ppiankov/noema/internal/extract"
	"github.com/ppiankov/noema/internal/gate"
	"github.com/ppiankov/noema/internal/llm"
	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/retrieve"
	"github.com/ppiankov/noema/internal/source"
	"github.com/ppiankov/noema/internal/verify"
	"github.com/ppiankov/noema/internal/worker"
)

// New builds a fully wired orchestrator from configuration
func New(cfg *model.Config, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var provider llm.Provider
	if cfg.LLM.Provider != "" {
		p, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			logger.Warn("generative provider unavailable, deterministic fallbacks only", zap.Error(err))
		} else {
			provider = p
		}
	}

	var resultCache cache.Cache
	if cfg.Cache.Enabled {
		dir := cfg.Cache.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve cache dir: %w", err)
			}
			dir = filepath.Join(home, ".noema", "cache")
		}
		resultCache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, dir, cfg.Cache.DiskTTL)
	}

	limiter := worker.NewLimiter(cfg.Concurrency.WebRatePerSecond, cfg.Concurrency.WebBurst)

	registry, err := source.NewRegistry(cfg, resultCache, limiter)
	if err != nil {
		return nil, fmt.Errorf("build source registry: %w", err)
	}

	return NewOrchestrator(Options{
		Expander:      expand.NewExpander(provider, cfg.Retrieval.MaxExpansions, logger),
		Retriever:     retrieve.NewRetriever(registry, cfg.Retrieval, cfg.Concurrency.FanoutWorkers, logger),
		Extractor:     extract.NewExtractor(provider, logger),
		Detector:      extract.NewDetector(),
		Verifier:      verify.NewVerifier(verify.NewClassifier(cfg.Verify), logger),
		Gate:          gate.NewGate(cfg.Gate.CoverageThreshold, logger),
		Provider:      provider,
		MaxIterations: cfg.Retrieval.MaxIterations,
		RunDeadline:   cfg.Retrieval.RunDeadline,
		Brief:         cfg.Output.Brief,
		Logger:        logger,
	}), nil
}

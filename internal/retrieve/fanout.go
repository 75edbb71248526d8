package retrieve

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/source"
	"github.com/ppiankov/noema/internal/worker"
)

// Retriever fans multi-query retrieval out across every enabled source
// and fuses the results into one deduplicated, ranked evidence set.
// Concurrency lives entirely inside Retrieve: the pool join is a
// barrier, and callers never observe partial state.
type Retriever struct {
	registry      *source.Registry
	workers       int
	callTimeout   time.Duration
	fanoutTimeout time.Duration
	perQueryTopK  int
	maxChunkChars int
	logger        *zap.Logger
}

// NewRetriever creates a retriever over the given source registry
func NewRetriever(registry *source.Registry, cfg model.RetrievalConfig, workers int, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 4
	}

	return &Retriever{
		registry:      registry,
		workers:       workers,
		callTimeout:   cfg.CallTimeout,
		fanoutTimeout: cfg.FanoutTimeout,
		perQueryTopK:  cfg.PerQueryTopK,
		maxChunkChars: cfg.MaxChunkChars,
		logger:        logger,
	}
}

// Result is the outcome of one retrieval pass
type Result struct {
	Evidence []model.EvidenceChunk
	Errors   []model.StageError // One per failed or timed-out call
}

// callJob is one (query, source) retrieval call
type callJob struct {
	ctx     context.Context
	src     source.Source
	query   string
	qIndex  int
	sRank   int
	topK    int
	timeout time.Duration
}

// callResult carries one call's ranked list or its failure
type callResult struct {
	qIndex int
	sRank  int
	source string
	query  string
	chunks []model.EvidenceChunk
	err    error
}

func (r *callResult) GetError() error { return r.err }

// Execute runs the retrieval call under its per-call timeout
func (j *callJob) Execute(_ context.Context) worker.Result {
	ctx := j.ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	chunks, err := j.src.Search(ctx, j.query, j.topK)
	return &callResult{
		qIndex: j.qIndex,
		sRank:  j.sRank,
		source: j.src.Name(),
		query:  j.query,
		chunks: chunks,
		err:    err,
	}
}

// Retrieve issues one concurrent call per (query, source) pair, waits
// for all of them to finish or time out, and fuses whatever arrived.
// prior is the previous pass's evidence; its top chunks enter fusion as
// one extra ranked list so refinement never loses information. A failed
// call contributes an empty list and a stage error, never an abort.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, prior []model.EvidenceChunk) Result {
	fanCtx := ctx
	if r.fanoutTimeout > 0 {
		var cancel context.CancelFunc
		fanCtx, cancel = context.WithTimeout(ctx, r.fanoutTimeout)
		defer cancel()
	}

	sources := r.registry.Ordered()
	pool := worker.NewPool(r.workers)
	pool.Start()

	started := time.Now()
	for qi, query := range queries {
		for si, src := range sources {
			pool.Submit(&callJob{
				ctx:     fanCtx,
				src:     src,
				query:   query,
				qIndex:  qi,
				sRank:   si,
				topK:    r.perQueryTopK,
				timeout: r.callTimeout,
			})
		}
	}

	// Join barrier: every call finishes or times out before fusion.
	raw := pool.Wait()

	var result Result
	lists := make([]RankedList, 0, len(raw))
	for _, res := range raw {
		cr := res.(*callResult)
		if cr.err != nil {
			r.logger.Warn("retrieval call failed",
				zap.String("source", cr.source),
				zap.String("query", cr.query),
				zap.Error(cr.err),
			)
			result.Errors = append(result.Errors, model.StageError{
				Stage:    "retrieving",
				Message:  fmt.Sprintf("%s: %q: %v", cr.source, cr.query, cr.err),
				Severity: model.SeverityWarning,
				At:       time.Now().UTC(),
			})
			continue
		}
		if len(cr.chunks) == 0 {
			continue
		}
		lists = append(lists, RankedList{
			QueryIndex: cr.qIndex,
			SourceRank: cr.sRank,
			Chunks:     cr.chunks,
		})
	}

	// Carried-over evidence ranks after every live source so fresh
	// retrievals win dedup ties.
	if len(prior) > 0 {
		lists = append(lists, RankedList{
			QueryIndex: len(queries),
			SourceRank: len(sources),
			Chunks:     stripFused(prior),
		})
	}

	result.Evidence = Fuse(lists, r.perQueryTopK, r.maxChunkChars)

	r.logger.Info("retrieval pass complete",
		zap.Int("queries", len(queries)),
		zap.Int("sources", len(sources)),
		zap.Int("lists", len(lists)),
		zap.Int("evidence", len(result.Evidence)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return result
}

// stripFused clears fused scores so prior-pass chunks re-enter fusion
// as a plain ranked list (their order already reflects the old ranking)
func stripFused(chunks []model.EvidenceChunk) []model.EvidenceChunk {
	out := make([]model.EvidenceChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, model.EvidenceChunk{
			Text:       c.Text,
			SourceID:   c.SourceID,
			SourceType: c.SourceType,
			RawScore:   c.RawScore,
		})
	}
	return out
}

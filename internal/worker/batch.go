package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/noema/internal/model"
)

// Runner executes one research run. Satisfied by the pipeline
// orchestrator; an interface here keeps the batch processor testable.
type Runner interface {
	Run(ctx context.Context, query string) (*model.RunContext, error)
}

// BatchResult is the outcome of one query in a batch
type BatchResult struct {
	Query string
	Run   *model.RunContext
	Error error
}

// GetError implements Result
func (r *BatchResult) GetError() error {
	return r.Error
}

// researchJob runs a single query against the shared runner
type researchJob struct {
	ctx    context.Context
	runner Runner
	query  string
}

func (j *researchJob) Execute(_ context.Context) Result {
	run, err := j.runner.Run(j.ctx, j.query)
	return &BatchResult{Query: j.query, Run: run, Error: err}
}

// BatchProcessor runs many research queries through a worker pool
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{runner: runner, concurrency: concurrency}
}

// ProcessFile reads queries from a file (one per line, # comments and
// blank lines skipped) and runs them concurrently. Results come back
// in input order.
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*BatchResult, error) {
	queries, err := readQueries(path)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries in %s", path)
	}
	return b.Process(ctx, queries), nil
}

// Process runs the given queries concurrently, preserving input order
func (b *BatchProcessor) Process(ctx context.Context, queries []string) []*BatchResult {
	pool := NewPool(b.concurrency)
	pool.Start()

	for _, query := range queries {
		pool.Submit(&researchJob{ctx: ctx, runner: b.runner, query: query})
	}

	byQuery := make(map[string]*BatchResult, len(queries))
	for _, result := range pool.Wait() {
		if br, ok := result.(*BatchResult); ok {
			byQuery[br.Query] = br
		}
	}

	ordered := make([]*BatchResult, 0, len(queries))
	for _, query := range queries {
		if br, ok := byQuery[query]; ok {
			ordered = append(ordered, br)
		}
	}
	return ordered
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var queries []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return queries, nil
}

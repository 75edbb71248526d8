package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/noema/internal/pipeline"
	"github.com/ppiankov/noema/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Research multiple questions from a file in parallel",
	Long: `Batch processes multiple research questions concurrently:
- Read questions from input file (one per line, # for comments)
- Run questions in parallel with configurable worker count
- Each run uses the full pipeline with concurrent retrieval fan-out
- Generate individual JSON and Markdown reports per question

Example:
  noema batch questions.txt
  noema batch questions.txt --concurrency 4 --output-dir ./reports
  noema batch questions.txt --timeout 20m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent runs")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./noema-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 15*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the web result cache")
	batchCmd.Flags().StringVar(&llmProvider, "llm", "", "LLM provider for generative assists (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Batch reuses the research flag plumbing for cache and LLM setup
	runTimeout = cfg.Retrieval.RunDeadline
	if err := applyResearchFlags(cfg); err != nil {
		return err
	}

	logger := buildLogger(cfg.Output.Verbose)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	orch, err := pipeline.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Batch: %s (%d workers, output %s)\n\n", file, concurrency, outputDir)

	processor := worker.NewBatchProcessor(orch, concurrency)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(true)
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Query, result.Error)
			continue
		}
		successCount++

		slug := sanitizeFilename(result.Query)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Run, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Query, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Run, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Query, err)
			continue
		}

		coverage := 0.0
		if result.Run.Gate != nil {
			coverage = result.Run.Gate.CoverageScore
		}
		fmt.Fprintf(os.Stderr, "✓ %s (coverage %.2f, %d claims)\n", result.Query, coverage, len(result.Run.VerifiedClaims))
	}

	fmt.Fprintf(os.Stderr, "\nTotal: %d  Success: %d  Failures: %d  Output: %s\n",
		len(results), successCount, failureCount, outputDir)

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d runs failed", failureCount)
	}
	return nil
}

// sanitizeFilename turns a question into a safe, bounded filename
func sanitizeFilename(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var sb strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case !lastDash && sb.Len() > 0:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.TrimSuffix(sb.String(), "-")
	if len(out) > 100 {
		out = out[:100]
	}
	if out == "" {
		out = "question"
	}
	return out
}

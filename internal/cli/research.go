package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/pipeline"
)

var (
	outJSON       string
	outMD         string
	runTimeout    time.Duration
	topK          int
	maxIterations int
	sources       []string
	uploadsDir    string
	indexURL      string
	webURL        string
	noCache       bool
	wantBrief     bool
	llmProvider   string
	llmModel      string
)

// researchCmd represents the research command
var researchCmd = &cobra.Command{
	Use:   "research <question>",
	Short: "Research a question across all configured evidence sources",
	Long: `Research runs a single question through the full pipeline:
- Expand the question into related retrieval queries
- Query every enabled source concurrently and fuse the results
- Extract atomic claims and detect contradictions between them
- Score each claim by independent source count and source credibility
- Gate on evidence coverage, with bounded refinement passes for gaps

Example:
  noema research "What are the tradeoffs of QUIC versus TCP?"
  noema research "..." --json report.json --md report.md
  noema research "..." --sources index,web --llm openai --llm-model gpt-4o-mini --brief`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	rootCmd.AddCommand(researchCmd)

	// Output flags
	researchCmd.Flags().StringVar(&outJSON, "json", "report.json", "output JSON path")
	researchCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")

	// Pipeline flags
	researchCmd.Flags().DurationVar(&runTimeout, "timeout", 3*time.Minute, "overall run deadline")
	researchCmd.Flags().IntVar(&topK, "top-k", 0, "per-query results per source (0 uses config)")
	researchCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "retrieval iteration budget (0 uses config)")
	researchCmd.Flags().StringSliceVar(&sources, "sources", nil, "enabled sources in priority order (index,web,uploads)")
	researchCmd.Flags().StringVar(&uploadsDir, "uploads-dir", "", "directory of user-uploaded documents")
	researchCmd.Flags().StringVar(&indexURL, "index-url", "", "indexed search service base URL")
	researchCmd.Flags().StringVar(&webURL, "web-url", "", "web search service base URL")
	researchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the web result cache")

	// LLM flags
	researchCmd.Flags().BoolVar(&wantBrief, "brief", false, "generate an LLM research brief (requires --llm)")
	researchCmd.Flags().StringVar(&llmProvider, "llm", "", "LLM provider for generative assists (openai, anthropic, ollama)")
	researchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runResearch(cmd *cobra.Command, args []string) error {
	question := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyResearchFlags(cfg); err != nil {
		return err
	}

	logger := buildLogger(cfg.Output.Verbose)
	defer func() { _ = logger.Sync() }()

	orch, err := pipeline.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	// Stream stage transitions to stderr in verbose mode
	if cfg.Output.Verbose {
		events, cancel := orch.Notifier().Subscribe(32)
		defer cancel()
		go func() {
			for ev := range events {
				if ev.Summary != "" {
					fmt.Fprintf(os.Stderr, "→ %s (iteration %d, +%dms) %s\n", ev.To, ev.Iteration, ev.ElapsedMS, ev.Summary)
					continue
				}
				fmt.Fprintf(os.Stderr, "→ %s (iteration %d, +%dms)\n", ev.To, ev.Iteration, ev.ElapsedMS)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	run, err := orch.Run(ctx, question)
	if err != nil {
		if run != nil {
			// Persist partial results before reporting the failure
			renderer := pipeline.NewRenderer(false)
			if outJSON != "" {
				_ = renderer.RenderJSON(run, outJSON)
			}
		}
		return fmt.Errorf("research failed: %w", err)
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "✓ %d evidence chunks from %d queries\n", len(run.Evidence), len(run.ExpandedQueries))
		fmt.Fprintf(os.Stderr, "✓ %d claims, %d contradictions\n", len(run.Claims), len(run.Contradictions))
		if run.Gate != nil {
			fmt.Fprintf(os.Stderr, "✓ coverage %.2f after %d iteration(s)\n", run.Gate.CoverageScore, run.Iteration)
		}
		fmt.Fprintln(os.Stderr)
	}

	renderer := pipeline.NewRenderer(true)
	if outJSON != "" {
		if err := renderer.RenderJSON(run, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(run, outMD); err != nil {
			return fmt.Errorf("render Markdown: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
		}
	}

	// Always print the findings summary to stdout
	fmt.Print(renderer.Markdown(run))
	return nil
}

// applyResearchFlags overlays CLI flags onto the loaded configuration
func applyResearchFlags(cfg *model.Config) error {
	cfg.Retrieval.RunDeadline = runTimeout
	if topK > 0 {
		cfg.Retrieval.PerQueryTopK = topK
	}
	if maxIterations > 0 {
		cfg.Retrieval.MaxIterations = maxIterations
	}
	if len(sources) > 0 {
		cfg.Sources.Enabled = sources
	}
	if uploadsDir != "" {
		cfg.Sources.Uploads.Dir = uploadsDir
		if !contains(cfg.Sources.Enabled, "uploads") {
			cfg.Sources.Enabled = append(cfg.Sources.Enabled, "uploads")
		}
	}
	if indexURL != "" {
		cfg.Sources.Index.BaseURL = indexURL
	}
	if webURL != "" {
		cfg.Sources.Web.BaseURL = webURL
		if !contains(cfg.Sources.Enabled, "web") {
			cfg.Sources.Enabled = append(cfg.Sources.Enabled, "web")
		}
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	cfg.Output.Brief = cfg.Output.Brief || wantBrief

	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		if llmModel != "" {
			cfg.LLM.Model = llmModel
		}
		switch llmProvider {
		case "openai":
			if cfg.LLM.APIKey == "" {
				cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
			}
			if cfg.LLM.APIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY environment variable not set")
			}
		case "anthropic", "claude":
			if cfg.LLM.APIKey == "" {
				cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
			}
			if cfg.LLM.APIKey == "" {
				return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
			}
		case "ollama":
			if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
				cfg.LLM.BaseURL = baseURL
			}
		}
	}
	if cfg.Output.Brief && cfg.LLM.Provider == "" {
		return fmt.Errorf("--brief requires an LLM provider (--llm)")
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

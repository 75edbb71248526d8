package model

import "time"

// Config is the full runtime configuration.
// Hierarchy: CLI flags > NOEMA_* env vars > config file > defaults.
type Config struct {
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Verify      VerifyConfig      `yaml:"verify" mapstructure:"verify"`
	Gate        GateConfig        `yaml:"gate" mapstructure:"gate"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// SourcesConfig configures the evidence source adapters. Order matters:
// it is the dedup tie-break order during fusion.
type SourcesConfig struct {
	// Enabled lists source names in priority order: "index", "web", "uploads"
	Enabled []string `yaml:"enabled" mapstructure:"enabled"`

	Index   IndexSourceConfig   `yaml:"index" mapstructure:"index"`
	Web     WebSourceConfig     `yaml:"web" mapstructure:"web"`
	Uploads UploadsSourceConfig `yaml:"uploads" mapstructure:"uploads"`
}

// IndexSourceConfig points at the indexed/vector search service.
// The service embeds server-side; this client sends query text only.
type IndexSourceConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
}

// WebSourceConfig configures the live web search client
type WebSourceConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// MaxResultsPerQuery caps live-web calls per query to bound latency,
	// independent of per_query_top_k.
	MaxResultsPerQuery int  `yaml:"max_results_per_query" mapstructure:"max_results_per_query"`
	FetchPages         bool `yaml:"fetch_pages" mapstructure:"fetch_pages"` // Enrich snippets via robots-gated page fetch
}

// UploadsSourceConfig points at a local directory of user documents
type UploadsSourceConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// RetrievalConfig bounds the retrieval fan-out and fusion
type RetrievalConfig struct {
	PerQueryTopK   int           `yaml:"per_query_top_k" mapstructure:"per_query_top_k"`
	MaxExpansions  int           `yaml:"max_expansions" mapstructure:"max_expansions"`
	MaxIterations  int           `yaml:"max_iterations" mapstructure:"max_iterations"`
	CallTimeout    time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`     // Per (query, source) call
	FanoutTimeout  time.Duration `yaml:"fanout_timeout" mapstructure:"fanout_timeout"` // Whole fan-out barrier
	RunDeadline    time.Duration `yaml:"run_deadline" mapstructure:"run_deadline"`     // Whole run
	MaxChunkChars  int           `yaml:"max_chunk_chars" mapstructure:"max_chunk_chars"` // Split longer chunks at paragraphs
}

// VerifyConfig configures the credibility classifier
type VerifyConfig struct {
	// DomainTiers maps a host (or suffix) to a tier 1-5 for live-web sources
	DomainTiers map[string]int `yaml:"domain_tiers" mapstructure:"domain_tiers"`
	// PathPatterns maps regex patterns on source IDs to tiers
	PathPatterns map[string]int `yaml:"path_patterns" mapstructure:"path_patterns"`
}

// GateConfig configures the quality gate
type GateConfig struct {
	CoverageThreshold float64 `yaml:"coverage_threshold" mapstructure:"coverage_threshold"`
}

// LLMConfig configures the optional generative assist. Every stage that
// uses it has a deterministic fallback; an empty provider disables it.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "openai", "ollama", ""
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// CacheConfig configures the layered web-search result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig configures outbound HTTP behaviour
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// ConcurrencyConfig bounds concurrent work
type ConcurrencyConfig struct {
	FanoutWorkers     int     `yaml:"fanout_workers" mapstructure:"fanout_workers"`
	WebRatePerSecond  float64 `yaml:"web_rate_per_second" mapstructure:"web_rate_per_second"`
	WebBurst          int     `yaml:"web_burst" mapstructure:"web_burst"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	Brief   bool `yaml:"brief" mapstructure:"brief"` // Generate the LLM research brief at Reporting
}

// DefaultConfig returns the standard configuration
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			Enabled: []string{"index", "uploads"},
			Index: IndexSourceConfig{
				BaseURL:    "http://localhost:6333",
				Collection: "research",
			},
			Web: WebSourceConfig{
				MaxResultsPerQuery: 5,
				FetchPages:         false,
			},
		},
		Retrieval: RetrievalConfig{
			PerQueryTopK:  8,
			MaxExpansions: 4,
			MaxIterations: 2,
			CallTimeout:   5 * time.Second,
			FanoutTimeout: 20 * time.Second,
			RunDeadline:   3 * time.Minute,
			MaxChunkChars: 2000,
		},
		Gate: GateConfig{
			CoverageThreshold: 0.8,
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30,
			MaxTokens: 800,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "Noema/0.1 (+https://github.com/ppiankov/noema)",
			MaxBodyBytes: 2_000_000,
		},
		Concurrency: ConcurrencyConfig{
			FanoutWorkers:    8,
			WebRatePerSecond: 1,
			WebBurst:         3,
		},
		Output: OutputConfig{},
	}
}

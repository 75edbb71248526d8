package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/noema/internal/cache"
	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/textutil"
	"github.com/ppiankov/noema/internal/util"
	"github.com/ppiankov/noema/internal/worker"
)

// WebSource queries a live web search API (searx-style JSON endpoint).
// Calls per query are capped independently of top_k to bound latency.
// Results are cached so refinement passes re-asking the same query
// within a run never re-hit the API.
type WebSource struct {
	baseURL    string
	maxResults int
	fetchPages bool
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	cache      cache.Cache
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
}

// NewWebSource creates a web source from configuration
func NewWebSource(cfg model.WebSourceConfig, httpCfg model.HTTPConfig, resultCache cache.Cache, limiter *worker.Limiter) *WebSource {
	maxResults := cfg.MaxResultsPerQuery
	if maxResults <= 0 {
		maxResults = 5
	}

	return &WebSource{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		maxResults: maxResults,
		fetchPages: cfg.FetchPages,
		httpClient: &http.Client{
			Timeout: httpCfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		userAgent: httpCfg.UserAgent,
		maxBytes:  httpCfg.MaxBodyBytes,
		cache:     resultCache,
		limiter:   limiter,
		robots:    util.NewRobotsChecker(httpCfg.UserAgent, httpCfg.Timeout),
	}
}

// Name returns the registry name
func (s *WebSource) Name() string {
	return "web"
}

// Type classifies web chunks
func (s *WebSource) Type() model.SourceType {
	return model.SourceLiveWeb
}

type webSearchResponse struct {
	Results []webSearchResult `json:"results"`
}

type webSearchResult struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Search queries the web search API and maps results to evidence chunks
func (s *WebSource) Search(ctx context.Context, query string, topK int) ([]model.EvidenceChunk, error) {
	limit := s.maxResults
	if topK > 0 && topK < limit {
		limit = topK
	}

	results, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}

	chunks := make([]model.EvidenceChunk, 0, len(results))
	for rank, item := range results {
		if item.URL == "" {
			continue
		}

		text := strings.TrimSpace(item.Content)
		if s.fetchPages {
			if page := s.fetchPageText(ctx, item.URL); page != "" {
				text = page
			}
		}
		if text == "" {
			text = item.Title
		}
		if text == "" {
			continue
		}

		score := item.Score
		if score <= 0 {
			// APIs without relevance scores: derive one from rank
			score = 1.0 - 0.1*float64(rank)
			if score < 0.1 {
				score = 0.1
			}
		}

		chunks = append(chunks, model.EvidenceChunk{
			Text:       text,
			SourceID:   item.URL,
			SourceType: model.SourceLiveWeb,
			RawScore:   clampScore(score),
		})
	}

	return chunks, nil
}

// search hits the API, consulting the result cache first
func (s *WebSource) search(ctx context.Context, query string) ([]webSearchResult, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("web search endpoint not configured")
	}

	key := cache.KeyFor("web", query)
	if s.cache != nil {
		if raw, found := s.cache.Get(key); found {
			var cached []webSearchResult
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.baseURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json", s.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search: HTTP %d", resp.StatusCode)
	}

	var parsed webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(parsed.Results); err == nil {
			_ = s.cache.Set(key, raw, 0)
		}
	}

	return parsed.Results, nil
}

// fetchPageText retrieves a result page's visible text, respecting
// robots.txt and the per-domain rate limit. Failures fall back to the
// search snippet; enrichment is best-effort.
func (s *WebSource) fetchPageText(ctx context.Context, pageURL string) string {
	allowed, crawlDelay, err := s.robots.CanFetch(ctx, pageURL)
	if err != nil || !allowed {
		return ""
	}

	if s.limiter != nil {
		delay := crawlDelay
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
		if err := s.limiter.WaitWithDelay(ctx, pageURL, delay); err != nil {
			return ""
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return ""
	}

	return textutil.StripHTML(string(body))
}

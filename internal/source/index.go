package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ppiankov/noema/internal/model"
)

// IndexSource queries an indexed/vector search service over HTTP.
// The service embeds query text server-side; this client never touches
// embeddings. Storage internals stay behind the search contract.
type IndexSource struct {
	baseURL    string
	collection string
	apiKey     string
	httpClient *http.Client
}

// NewIndexSource creates an index source from configuration
func NewIndexSource(cfg model.IndexSourceConfig, httpCfg model.HTTPConfig) *IndexSource {
	return &IndexSource{
		baseURL:    cfg.BaseURL,
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: httpCfg.Timeout},
	}
}

// Name returns the registry name
func (s *IndexSource) Name() string {
	return "index"
}

// Type classifies index chunks
func (s *IndexSource) Type() model.SourceType {
	return model.SourceIndexed
}

type indexSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type indexSearchResponse struct {
	Results []struct {
		ID       string                 `json:"id"`
		Text     string                 `json:"text"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata,omitempty"`
	} `json:"results"`
}

// Search queries the collection and maps results to evidence chunks
func (s *IndexSource) Search(ctx context.Context, query string, topK int) ([]model.EvidenceChunk, error) {
	body, err := json.Marshal(indexSearchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/search", s.baseURL, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("index search: HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var parsed indexSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	chunks := make([]model.EvidenceChunk, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.Text == "" {
			continue
		}

		sourceID := item.ID
		if src, ok := item.Metadata["source"].(string); ok && src != "" {
			sourceID = src
		}

		chunks = append(chunks, model.EvidenceChunk{
			Text:       item.Text,
			SourceID:   sourceID,
			SourceType: model.SourceIndexed,
			RawScore:   clampScore(item.Score),
		})
	}

	return chunks, nil
}

// clampScore forces a source-local relevance score into [0, 1]
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

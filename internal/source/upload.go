package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/textutil"
)

// UploadSource searches user-uploaded documents in a local directory.
// Documents are split into paragraphs and scored by keyword overlap
// with the query; no index or embedding service is involved.
type UploadSource struct {
	dir string
}

// NewUploadSource creates an upload source rooted at dir
func NewUploadSource(dir string) *UploadSource {
	return &UploadSource{dir: dir}
}

// Name returns the registry name
func (s *UploadSource) Name() string {
	return "uploads"
}

// Type classifies uploaded chunks
func (s *UploadSource) Type() model.SourceType {
	return model.SourceUploaded
}

type scoredParagraph struct {
	text     string
	sourceID string
	score    float64
}

// Search scores every paragraph of every document against the query
func (s *UploadSource) Search(ctx context.Context, query string, topK int) ([]model.EvidenceChunk, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("uploads directory not configured")
	}

	queryTokens := textutil.ContentTokens(query)
	if len(queryTokens) == 0 {
		return []model.EvidenceChunk{}, nil
	}

	var scored []scoredParagraph

	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		text, ok := s.readDocument(path)
		if !ok {
			return nil
		}

		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			rel = d.Name()
		}

		for _, para := range textutil.SplitParagraphs(text) {
			score := overlapScore(queryTokens, para)
			if score > 0 {
				scored = append(scored, scoredParagraph{
					text:     para,
					sourceID: rel,
					score:    score,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk uploads dir: %w", err)
	}

	// Stable order for equal scores: by source ID, then text
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].sourceID != scored[j].sourceID {
			return scored[i].sourceID < scored[j].sourceID
		}
		return scored[i].text < scored[j].text
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	chunks := make([]model.EvidenceChunk, 0, len(scored))
	for _, sp := range scored {
		chunks = append(chunks, model.EvidenceChunk{
			Text:       sp.text,
			SourceID:   sp.sourceID,
			SourceType: model.SourceUploaded,
			RawScore:   sp.score,
		})
	}

	return chunks, nil
}

// readDocument loads a supported document as plain text
func (s *UploadSource) readDocument(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		return string(data), true
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		return textutil.StripHTML(string(data)), true
	default:
		return "", false
	}
}

// overlapScore is the fraction of query content tokens present in text
func overlapScore(queryTokens map[string]struct{}, text string) float64 {
	textTokens := textutil.ContentTokens(text)
	hits := 0
	for tok := range queryTokens {
		if _, ok := textTokens[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

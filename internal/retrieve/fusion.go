package retrieve

import (
	"sort"

	"github.com/ppiankov/noema/internal/model"
	"github.com/ppiankov/noema/internal/textutil"
)

const (
	// rrfK is the reciprocal-rank fusion constant: a chunk at rank r
	// contributes 1/(rrfK+r) per list it appears in.
	rrfK = 60

	// dupJaccard is the word-set similarity above which two chunks are
	// considered duplicates.
	dupJaccard = 0.85
)

// RankedList is one (query, source) result list entering fusion.
// SourceRank is the source's position in the configured order and
// breaks dedup ties; the carried-over evidence from the previous
// refinement pass enters as one extra list ranked after all sources.
type RankedList struct {
	QueryIndex int
	SourceRank int
	Chunks     []model.EvidenceChunk
}

// Fuse merges ranked lists into one deduplicated, globally ranked
// evidence set. The merge is deterministic: identical input lists in
// identical order produce byte-identical output.
func Fuse(lists []RankedList, perQueryTopK, maxChunkChars int) []model.EvidenceChunk {
	// Oversized chunks split at paragraph boundaries first, so dedup
	// and rank contributions operate on the split units.
	split := make([]RankedList, 0, len(lists))
	for _, list := range lists {
		split = append(split, RankedList{
			QueryIndex: list.QueryIndex,
			SourceRank: list.SourceRank,
			Chunks:     splitOversized(list.Chunks, maxChunkChars),
		})
	}

	// Lists are processed in a fixed order so greedy dedup is
	// reproducible: by query, then source priority.
	sort.SliceStable(split, func(i, j int) bool {
		if split[i].QueryIndex != split[j].QueryIndex {
			return split[i].QueryIndex < split[j].QueryIndex
		}
		return split[i].SourceRank < split[j].SourceRank
	})

	var canonicals []*candidate
	for _, list := range split {
		for rank, chunk := range list.Chunks {
			contribution := 1.0 / float64(rrfK+rank+1)
			addChunk(&canonicals, chunk, list.SourceRank, contribution)
		}
	}

	// Global ordering: fused desc, then raw desc, then source_id asc.
	sort.SliceStable(canonicals, func(i, j int) bool {
		a, b := canonicals[i], canonicals[j]
		if a.fused != b.fused {
			return a.fused > b.fused
		}
		if a.chunk.RawScore != b.chunk.RawScore {
			return a.chunk.RawScore > b.chunk.RawScore
		}
		return a.chunk.SourceID < b.chunk.SourceID
	})

	limit := 2 * perQueryTopK
	if limit > 0 && len(canonicals) > limit {
		canonicals = canonicals[:limit]
	}

	// Fresh chunk objects: fusion never mutates its inputs.
	out := make([]model.EvidenceChunk, 0, len(canonicals))
	for _, c := range canonicals {
		out = append(out, model.EvidenceChunk{
			Text:       c.chunk.Text,
			SourceID:   c.chunk.SourceID,
			SourceType: c.chunk.SourceType,
			RawScore:   c.chunk.RawScore,
			FusedScore: c.fused,
		})
	}
	return out
}

// candidate accumulates rank contributions for one deduplicated chunk
type candidate struct {
	chunk      model.EvidenceChunk // Representative: highest raw_score among duplicates
	sourceRank int
	fused      float64
}

// addChunk merges the chunk into an existing candidate when their
// word-set Jaccard similarity exceeds the duplicate threshold, keeping
// the higher-raw_score representative (ties: earlier source in the
// configured order, then lexicographically smaller source_id).
func addChunk(canonicals *[]*candidate, chunk model.EvidenceChunk, sourceRank int, contribution float64) {
	for _, c := range *canonicals {
		if textutil.Jaccard(c.chunk.Text, chunk.Text) > dupJaccard {
			c.fused += contribution
			if betterRepresentative(chunk, sourceRank, c.chunk, c.sourceRank) {
				c.chunk = chunk
				c.sourceRank = sourceRank
			}
			return
		}
	}
	*canonicals = append(*canonicals, &candidate{
		chunk:      chunk,
		sourceRank: sourceRank,
		fused:      contribution,
	})
}

func betterRepresentative(a model.EvidenceChunk, aRank int, b model.EvidenceChunk, bRank int) bool {
	if a.RawScore != b.RawScore {
		return a.RawScore > b.RawScore
	}
	if aRank != bRank {
		return aRank < bRank
	}
	return a.SourceID < b.SourceID
}

// splitOversized breaks chunks longer than maxChars into paragraph
// units, each occupying a successive rank position.
func splitOversized(chunks []model.EvidenceChunk, maxChars int) []model.EvidenceChunk {
	if maxChars <= 0 {
		return chunks
	}

	out := make([]model.EvidenceChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Text) <= maxChars {
			out = append(out, chunk)
			continue
		}
		for _, para := range textutil.SplitParagraphs(chunk.Text) {
			out = append(out, model.EvidenceChunk{
				Text:       para,
				SourceID:   chunk.SourceID,
				SourceType: chunk.SourceType,
				RawScore:   chunk.RawScore,
			})
		}
	}
	return out
}

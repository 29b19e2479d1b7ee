package ingestion_engine

import (
	"context"
	"log"
	"strings"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/vectorindex"
)

// RetrievedChunk is one search hit resolved to its stored text.
type RetrievedChunk struct {
	ID       string  `json:"id"`
	Distance float32 `json:"distance"`
	vectorindex.ChunkRef
}

// Retrieval is the context assembled for one query.
//
// Context: chunk texts joined nearest first.
// Sources: distinct filenames in order of first appearance.
type Retrieval struct {
	Context string
	Sources []string
	Chunks  []RetrievedChunk
}

// SourceLabel is the provenance string attached to an answer.
func (r *Retrieval) SourceLabel() string {
	return SourceLabel(r.Sources)
}

// SourceLabel joins source names with ", "; no sources reads "Unknown".
func SourceLabel(sources []string) string {
	if len(sources) == 0 {
		return "Unknown"
	}
	return strings.Join(sources, ", ")
}

// Retrieve embeds query and returns the TopK nearest chunks. Hits beyond
// MaxDistance and ids with no catalog entry are skipped.
func (s *DocumentIndexService) Retrieve(ctx context.Context, query string) (*Retrieval, error) {
	if s.index.Len() == 0 {
		return nil, core.ErrNoDocuments
	}

	vecs, err := s.embedAll(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Search(vecs[0], s.cfg.TopK)
	if err != nil {
		return nil, err
	}

	out := &Retrieval{}
	seen := make(map[string]bool)
	texts := make([]string, 0, len(hits))

	s.catMu.RLock()
	for _, h := range hits {
		if s.cfg.MaxDistance > 0 && h.Distance > s.cfg.MaxDistance {
			continue
		}
		ref, ok := s.catalog[h.ID]
		if !ok {
			log.Printf("DocumentIndex: hit %s has no catalog entry, skipping", h.ID)
			continue
		}
		out.Chunks = append(out.Chunks, RetrievedChunk{ID: h.ID, Distance: h.Distance, ChunkRef: ref})
		texts = append(texts, ref.Text)
		if !seen[ref.FileName] {
			seen[ref.FileName] = true
			out.Sources = append(out.Sources, ref.FileName)
		}
	}
	s.catMu.RUnlock()

	if len(out.Chunks) == 0 {
		return nil, core.ErrNoRelevantContext
	}
	out.Context = strings.Join(texts, "\n\n")
	return out, nil
}

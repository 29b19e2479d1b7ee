package ingestion_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/railchat/internal/core"
)

func TestRetrieve_TwoDocumentsNearestFirst(t *testing.T) {
	h := newHarness(t, func(c *IngestConfig) { c.TopK = 2 })
	h.ingest(t, "B.pdf", "beta body", []float32{0, 1, 0, 0})
	h.ingest(t, "A.pdf", "alpha body", []float32{1, 0, 0, 0})
	h.embedder.table["which one?"] = []float32{0.9, 0.2, 0, 0}

	r, err := h.svc.Retrieve(context.Background(), "which one?")
	require.NoError(t, err)

	assert.Equal(t, []string{"A.pdf", "B.pdf"}, r.Sources)
	assert.Equal(t, "alpha body\n\nbeta body", r.Context)
	require.Len(t, r.Chunks, 2)
	assert.Less(t, r.Chunks[0].Distance, r.Chunks[1].Distance)
	assert.Equal(t, "A.pdf, B.pdf", r.SourceLabel())
}

func TestRetrieve_EmptyIndexSkipsEmbedding(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, core.ErrNoDocuments)
	assert.Equal(t, 0, h.embedder.callCount())
}

func TestRetrieve_DistinctSources(t *testing.T) {
	h := newHarness(t, func(c *IngestConfig) { c.ChunkSize = 4 })
	text := "aaaabbbb"
	h.embedder.table["aaaa"] = []float32{1, 0, 0, 0}
	h.embedder.table["bbbb"] = []float32{2, 0, 0, 0}
	h.ingest(t, "A.pdf", text, nil)
	h.embedder.table["q"] = []float32{1, 0, 0, 0}

	r, err := h.svc.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.pdf"}, r.Sources)
	assert.Equal(t, "aaaa\n\nbbbb", r.Context)
}

func TestRetrieve_SkipsOrphans(t *testing.T) {
	h := newHarness(t, nil)
	h.ingest(t, "A.pdf", "alpha", []float32{1, 1, 0, 0})
	require.NoError(t, h.svc.index.Insert([]float32{1, 0, 0, 0}, "orphan"))
	h.embedder.table["q"] = []float32{1, 0, 0, 0}

	r, err := h.svc.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, r.Chunks, 1)
	assert.Equal(t, "alpha", r.Chunks[0].Text)
}

func TestRetrieve_MaxDistance(t *testing.T) {
	h := newHarness(t, func(c *IngestConfig) { c.MaxDistance = 0.5 })
	h.ingest(t, "far.pdf", "far away", []float32{10, 10, 0, 0})
	h.embedder.table["q"] = []float32{0, 0, 0, 0}

	_, err := h.svc.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, core.ErrNoRelevantContext)

	h.ingest(t, "near.pdf", "close by", []float32{0.1, 0, 0, 0})
	r, err := h.svc.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"near.pdf"}, r.Sources)
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "Unknown", SourceLabel(nil))
	assert.Equal(t, "A.pdf", SourceLabel([]string{"A.pdf"}))
	assert.Equal(t, "A.pdf, B.pdf", SourceLabel([]string{"A.pdf", "B.pdf"}))
}

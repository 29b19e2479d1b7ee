package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/railchat/internal/config"
	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
)

const testDim = 4

var (
	admin = models.Identity{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}
	plain = models.Identity{UserID: "user-1", Email: "user@example.com", Role: models.RoleUser}
)

type harness struct {
	svc       *DocumentIndexService
	store     *memStore
	objects   *memObjects
	embedder  *tableEmbedder
	extractor *staticExtractor
	snapshots *memSnapshots
}

func newHarness(t *testing.T, mutate func(*IngestConfig)) *harness {
	t.Helper()
	cfg := &IngestConfig{
		ChunkSize:    512,
		Granularity:  config.GranularityChunk,
		Dimension:    testDim,
		TopK:         5,
		BatchSize:    2,
		EmbedWorkers: 2,
		EmbedTimeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}
	h := &harness{
		store:     newMemStore(),
		objects:   newMemObjects(),
		embedder:  newTableEmbedder(testDim),
		extractor: &staticExtractor{texts: map[string]string{}, errs: map[string]error{}},
		snapshots: &memSnapshots{},
	}
	h.svc = NewDocumentIndexService(h.store, h.objects, h.embedder, h.extractor, h.snapshots, cfg)
	h.svc.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return h
}

func (h *harness) ingest(t *testing.T, name, text string, vec []float32) IngestResult {
	t.Helper()
	h.extractor.texts[name] = text
	if vec != nil {
		h.embedder.table[text] = vec
	}
	results, err := h.svc.IngestBatch(context.Background(), admin, []core.Source{{FileName: name, Data: []byte(text)}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	return results[0]
}

func TestIngest_TwoChunksForTwiceChunkSize(t *testing.T) {
	h := newHarness(t, nil)
	before := h.svc.Len()

	res := h.ingest(t, "A.pdf", strings.Repeat("a", 1024), nil)

	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, before+2, h.svc.Len())

	n, err := h.store.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doc, err := h.store.GetDocumentByID(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "A.pdf", doc.FileName)
	assert.Equal(t, admin.UserID, doc.UserID)
	assert.Equal(t, "documents/"+res.DocumentID+"/A.pdf", doc.StorageKey)
	assert.Contains(t, h.objects.files, doc.StorageKey)
	assert.Equal(t, 2, h.snapshots.entries())
}

func TestIngest_DocumentGranularity(t *testing.T) {
	h := newHarness(t, func(c *IngestConfig) { c.Granularity = config.GranularityDocument })

	res := h.ingest(t, "long.pdf", strings.Repeat("w", 1500), nil)

	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 1, h.svc.Len())
	chunks, err := h.store.ListIndexedChunks(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Len(t, chunks[0].Text, 1500)
}

func TestIngest_URLStoresScrapedText(t *testing.T) {
	h := newHarness(t, nil)
	url := "https://rail.example/safety"
	h.extractor.texts[url] = "Keep clear of the platform edge."

	results, err := h.svc.IngestBatch(context.Background(), admin, []core.Source{{URL: url}})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	doc, err := h.store.GetDocumentByID(context.Background(), results[0].DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceTypeURL, doc.SourceType)
	assert.Equal(t, url, doc.FileName)
	assert.Equal(t, "scraped/website_content_20240309_140507.txt", doc.StorageKey)
	assert.Equal(t, []byte("Keep clear of the platform edge."), h.objects.files[doc.StorageKey])
}

func TestIngestBatch_PartialFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.texts["good.pdf"] = "good text"
	h.extractor.errs["scan.pdf"] = core.NewExtractionError("scan.pdf", core.ReasonNoTextFound, nil)
	h.extractor.texts["blank.pdf"] = ""
	h.extractor.texts["bad.pdf"] = "poison"
	h.embedder.fail["poison"] = true
	h.extractor.texts["also-good.pdf"] = "more text"

	results, err := h.svc.IngestBatch(context.Background(), admin, []core.Source{
		{FileName: "good.pdf"}, {FileName: "scan.pdf"}, {FileName: "blank.pdf"}, {FileName: "bad.pdf"}, {FileName: "also-good.pdf"},
	})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.True(t, results[0].OK())
	assert.Equal(t, "ExtractionFailure", core.Kind(results[1].Err))
	assert.Equal(t, "ExtractionFailure", core.Kind(results[2].Err))
	assert.ErrorIs(t, results[3].Err, core.ErrEmbedding)
	assert.True(t, results[4].OK())
	assert.Equal(t, "bad.pdf", results[3].Source)

	assert.Equal(t, 2, h.svc.Len())
	docs, err := h.store.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Len(t, h.objects.files, 2)
	assert.Equal(t, 2, h.snapshots.entries())
}

func TestIngestBatch_Forbidden(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.texts["A.pdf"] = "text"

	results, err := h.svc.IngestBatch(context.Background(), plain, []core.Source{{FileName: "A.pdf"}})
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.Nil(t, results)
	assert.Equal(t, 0, h.extractor.calls)
	assert.Equal(t, 0, h.svc.Len())
}

func TestIngest_DimensionMismatchLeavesNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.extractor.texts["odd.pdf"] = "odd"
	h.embedder.table["odd"] = []float32{1, 2, 3}

	results, err := h.svc.IngestBatch(context.Background(), admin, []core.Source{{FileName: "odd.pdf"}})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, core.ErrDimensionMismatch)
	assert.Equal(t, 0, h.svc.Len())
	assert.Empty(t, h.objects.files)
	assert.Equal(t, -1, h.snapshots.entries())
}

func TestIngest_DatabaseFailureRollsBackBlob(t *testing.T) {
	h := newHarness(t, nil)
	h.store.failCreate = core.ErrPersistenceUnavailable
	h.extractor.texts["A.pdf"] = "text"

	results, err := h.svc.IngestBatch(context.Background(), admin, []core.Source{{FileName: "A.pdf"}})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, core.ErrPersistenceUnavailable)
	assert.Equal(t, 0, h.svc.Len())
	assert.Empty(t, h.objects.files)
}

func TestIngest_BlobFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.objects.failUpload = errors.New("disk full")
	h.extractor.texts["A.pdf"] = "text"

	results, err := h.svc.IngestBatch(context.Background(), admin, []core.Source{{FileName: "A.pdf"}})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, core.ErrPersistenceUnavailable)
	n, _ := h.store.CountChunks(context.Background())
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, h.svc.Len())
}

func TestIngest_SnapshotFailureIsBatchLevel(t *testing.T) {
	h := newHarness(t, nil)
	h.snapshots.failSave = errors.New("read-only filesystem")
	h.extractor.texts["A.pdf"] = "text"

	results, err := h.svc.IngestBatch(context.Background(), admin, []core.Source{{FileName: "A.pdf"}})
	assert.ErrorIs(t, err, core.ErrIndexIO)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, 1, h.svc.Len())
}

func TestEmbedAll_KeepsOrderAcrossBatches(t *testing.T) {
	h := newHarness(t, func(c *IngestConfig) { c.BatchSize = 2; c.EmbedWorkers = 3 })
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vecs, err := h.svc.embedAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, 3, h.embedder.callCount())
}

func TestRemoveDocument(t *testing.T) {
	h := newHarness(t, nil)
	a := h.ingest(t, "A.pdf", "alpha", []float32{1, 0, 0, 0})
	h.ingest(t, "B.pdf", "beta", []float32{0, 1, 0, 0})
	h.embedder.table["q"] = []float32{1, 0, 0, 0}
	docA, err := h.store.GetDocumentByID(context.Background(), a.DocumentID)
	require.NoError(t, err)

	t.Run("forbidden for plain users", func(t *testing.T) {
		assert.ErrorIs(t, h.svc.RemoveDocument(context.Background(), plain, a.DocumentID), core.ErrForbidden)
		assert.Equal(t, 2, h.svc.Len())
	})

	t.Run("removes rows vectors blob and snapshot entries", func(t *testing.T) {
		require.NoError(t, h.svc.RemoveDocument(context.Background(), admin, a.DocumentID))
		assert.Equal(t, 1, h.svc.Len())
		assert.Equal(t, 1, h.snapshots.entries())
		assert.NotContains(t, h.objects.files, docA.StorageKey)

		r, err := h.svc.Retrieve(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, []string{"B.pdf"}, r.Sources)
	})

	t.Run("unknown document", func(t *testing.T) {
		assert.ErrorIs(t, h.svc.RemoveDocument(context.Background(), admin, "missing"), core.ErrNotFound)
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("no snapshot rebuilds from database", func(t *testing.T) {
		src := newHarness(t, nil)
		src.ingest(t, "A.pdf", strings.Repeat("x", 700), nil)

		fresh := newHarness(t, nil)
		fresh.store = src.store
		fresh.svc = NewDocumentIndexService(src.store, fresh.objects, fresh.embedder, fresh.extractor, fresh.snapshots, fresh.svc.cfg)

		require.NoError(t, fresh.svc.Load(ctx))
		assert.Equal(t, 2, fresh.svc.Len())
		assert.Equal(t, 2, fresh.snapshots.entries())
		assert.Equal(t, 0, fresh.embedder.callCount())
	})

	t.Run("matching snapshot is used as is", func(t *testing.T) {
		src := newHarness(t, nil)
		src.ingest(t, "A.pdf", "alpha", []float32{1, 0, 0, 0})
		calls := src.store.listCalls

		restarted := NewDocumentIndexService(src.store, src.objects, src.embedder, src.extractor, src.snapshots, src.svc.cfg)
		require.NoError(t, restarted.Load(ctx))
		assert.Equal(t, 1, restarted.Len())
		assert.Equal(t, calls, src.store.listCalls)

		src.embedder.table["q"] = []float32{1, 0, 0, 0}
		r, err := restarted.Retrieve(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, "alpha", r.Context)
	})

	t.Run("granularity change keeps a matching snapshot", func(t *testing.T) {
		src := newHarness(t, nil)
		src.ingest(t, "A.pdf", "alpha", nil)
		require.Equal(t, config.GranularityChunk, src.snapshots.snap.Granularity)
		calls := src.store.listCalls

		cfg := *src.svc.cfg
		cfg.Granularity = config.GranularityDocument
		restarted := NewDocumentIndexService(src.store, src.objects, src.embedder, src.extractor, src.snapshots, &cfg)
		require.NoError(t, restarted.Load(ctx))
		assert.Equal(t, 1, restarted.Len())
		assert.Equal(t, calls, src.store.listCalls)
	})

	t.Run("stale snapshot triggers rebuild", func(t *testing.T) {
		src := newHarness(t, nil)
		src.ingest(t, "A.pdf", "alpha", nil)
		stale := src.snapshots.snap
		src.ingest(t, "B.pdf", "beta", nil)
		src.snapshots.snap = stale

		restarted := NewDocumentIndexService(src.store, src.objects, src.embedder, src.extractor, src.snapshots, src.svc.cfg)
		require.NoError(t, restarted.Load(ctx))
		assert.Equal(t, 2, restarted.Len())
		assert.Equal(t, 2, src.snapshots.entries())
	})

	t.Run("snapshot write failure after rebuild still serves", func(t *testing.T) {
		src := newHarness(t, nil)
		src.ingest(t, "A.pdf", "alpha", nil)
		src.snapshots.snap = nil
		src.snapshots.failSave = core.ErrIndexIO

		restarted := NewDocumentIndexService(src.store, src.objects, src.embedder, src.extractor, src.snapshots, src.svc.cfg)
		require.NoError(t, restarted.Load(ctx))
		assert.Equal(t, 1, restarted.Len())
	})

	t.Run("unreadable snapshot triggers rebuild", func(t *testing.T) {
		src := newHarness(t, nil)
		src.ingest(t, "A.pdf", "alpha", nil)
		src.snapshots.failLoad = core.ErrIndexIO

		restarted := NewDocumentIndexService(src.store, src.objects, src.embedder, src.extractor, src.snapshots, src.svc.cfg)
		require.NoError(t, restarted.Load(ctx))
		assert.Equal(t, 1, restarted.Len())
	})
}

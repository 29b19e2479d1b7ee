package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/railchat/internal/config"
	"github.com/markdave123-py/railchat/internal/core"
	objectclient "github.com/markdave123-py/railchat/internal/core/object-client"
	"github.com/markdave123-py/railchat/internal/core/vectorindex"
	"github.com/markdave123-py/railchat/internal/models"
)

var (
	_ Ingestor  = (*DocumentIndexService)(nil)
	_ Retriever = (*DocumentIndexService)(nil)
)

// DocumentIndexService owns the vector index and the id->chunk catalog.
//
// db:        durable record of documents and chunk vectors.
// obj:       blob storage for originals and scraped text.
// embedder:  embedding provider (Ollama/Gemini).
// extractor: turns uploads and URLs into text.
// snapshots: where the index is persisted between runs.
//
// All mutations (ingest commit, removal, rebuild) hold writeMu, so the
// database rows, the index and the snapshot change together. Readers only
// take the index and catalog read locks.
type DocumentIndexService struct {
	db        core.DocumentStore
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.TextExtractor
	snapshots vectorindex.SnapshotStore
	cfg       *IngestConfig

	index   *vectorindex.FlatIndex
	writeMu sync.Mutex

	catMu   sync.RWMutex
	catalog map[string]vectorindex.ChunkRef

	now func() time.Time
}

func NewDocumentIndexService(
	db core.DocumentStore,
	obj core.ObjectClient,
	emb core.EmbeddingProvider,
	extractor core.TextExtractor,
	snapshots vectorindex.SnapshotStore,
	cfg *IngestConfig,
) *DocumentIndexService {
	cfg = cfg.withDefaults()
	return &DocumentIndexService{
		db: db, obj: obj, embedder: emb, extractor: extractor, snapshots: snapshots, cfg: cfg,
		index:   vectorindex.NewFlatIndex(cfg.Dimension),
		catalog: make(map[string]vectorindex.ChunkRef),
		now:     time.Now,
	}
}

// Len is the number of indexed chunks.
func (s *DocumentIndexService) Len() int { return s.index.Len() }

// IngestBatch extracts, chunks, embeds and commits each item in order.
// Items fail independently; a failed item leaves no trace in the database,
// the index or the snapshot. The returned error is batch level: the caller
// is not allowed to ingest, or the snapshot could not be written after
// items were committed.
func (s *DocumentIndexService) IngestBatch(ctx context.Context, who models.Identity, items []core.Source) ([]IngestResult, error) {
	if !who.Role.CanIngest() {
		return nil, core.ErrForbidden
	}

	results := make([]IngestResult, len(items))
	committed := 0
	for i, item := range items {
		res := s.ingestOne(ctx, who, item)
		if res.Err != nil {
			log.Printf("DocumentIndex: ingest %q failed: %v", res.Source, res.Err)
		} else {
			log.Printf("DocumentIndex: ingested %q as %s (%d chunks)", res.Source, res.DocumentID, res.Chunks)
			committed++
		}
		results[i] = res
	}

	if committed == 0 {
		return results, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.saveSnapshotLocked(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// staged is everything computed for one item before it is committed.
type staged struct {
	doc    *models.Document
	chunks []models.DocumentChunk
	refs   []vectorindex.ChunkRef
	blob   []byte
}

func (s *DocumentIndexService) ingestOne(ctx context.Context, who models.Identity, src core.Source) IngestResult {
	res := IngestResult{Source: src.Name()}

	st, err := s.stage(ctx, who, src)
	if err != nil {
		res.Err = err
		return res
	}
	if err := s.commit(ctx, st); err != nil {
		res.Err = err
		return res
	}
	res.DocumentID = st.doc.ID
	res.Chunks = len(st.chunks)
	return res
}

// stage extracts and embeds without touching any store.
func (s *DocumentIndexService) stage(ctx context.Context, who models.Identity, src core.Source) (*staged, error) {
	extracted, err := s.extractor.Extract(ctx, src)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:          uuid.NewString(),
		UserID:      who.UserID,
		Granularity: s.cfg.Granularity,
		CreatedAt:   now,
	}
	var blob []byte
	if src.URL != "" {
		doc.FileName = src.URL
		doc.SourceURL = src.URL
		doc.SourceType = models.SourceTypeURL
		doc.ContentType = "text/plain"
		doc.StorageKey = objectclient.ScrapedKey(now)
		blob = []byte(extracted.Text)
	} else {
		doc.FileName = src.FileName
		doc.SourceType = models.SourceTypeUpload
		doc.ContentType = DetectContentType(src)
		doc.StorageKey = objectclient.DocumentKey(doc.ID, src.FileName)
		blob = src.Data
	}

	var units []Chunk
	if s.cfg.Granularity == config.GranularityDocument {
		units = wholeDocument(doc.ID, extracted.Text)
	} else {
		units = ChunkDocument(doc.ID, extracted.Text, s.cfg.ChunkSize)
	}
	if len(units) == 0 {
		return nil, core.NewExtractionError(src.Name(), core.ReasonNoTextFound, nil)
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	st := &staged{
		doc:    doc,
		chunks: make([]models.DocumentChunk, len(units)),
		refs:   make([]vectorindex.ChunkRef, len(units)),
		blob:   blob,
	}
	for i, u := range units {
		if len(vectors[i]) != s.cfg.Dimension {
			return nil, &core.DimensionError{Expected: s.cfg.Dimension, Got: len(vectors[i])}
		}
		st.chunks[i] = models.DocumentChunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Text:       u.Text,
			Embedding:  vectors[i],
			Position:   u.Ordinal,
			CreatedAt:  now,
		}
		st.refs[i] = vectorindex.ChunkRef{DocumentID: doc.ID, FileName: doc.FileName, Position: u.Ordinal, Text: u.Text}
	}
	return st, nil
}

// commit stores the blob, then the rows, then the vectors. Each later step
// failing undoes the earlier ones.
func (s *DocumentIndexService) commit(ctx context.Context, st *staged) error {
	url, err := s.obj.UploadFile(ctx, st.doc.StorageKey, st.blob, st.doc.ContentType)
	if err != nil {
		return fmt.Errorf("%w: store original: %w", core.ErrPersistenceUnavailable, err)
	}
	st.doc.StorageURL = url

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.CreateDocumentWithChunks(ctx, st.doc, st.chunks); err != nil {
		s.deleteBlob(st.doc.StorageKey)
		return fmt.Errorf("save document: %w", err)
	}

	entries := make([]vectorindex.Entry, len(st.chunks))
	s.catMu.Lock()
	for i, ch := range st.chunks {
		entries[i] = vectorindex.Entry{ID: ch.ID, Vector: ch.Embedding}
		s.catalog[ch.ID] = st.refs[i]
	}
	s.catMu.Unlock()

	if err := s.index.InsertBatch(entries); err != nil {
		s.forget(st.chunks)
		if derr := s.db.DeleteDocument(context.WithoutCancel(ctx), st.doc.ID); derr != nil {
			log.Printf("DocumentIndex: rollback of %s failed: %v", st.doc.ID, derr)
		}
		s.deleteBlob(st.doc.StorageKey)
		return err
	}
	return nil
}

func (s *DocumentIndexService) forget(chunks []models.DocumentChunk) {
	s.catMu.Lock()
	for _, ch := range chunks {
		delete(s.catalog, ch.ID)
	}
	s.catMu.Unlock()
}

func (s *DocumentIndexService) deleteBlob(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.obj.DeleteFile(ctx, key); err != nil && !errors.Is(err, core.ErrNotFound) {
		log.Printf("DocumentIndex: delete blob %s: %v", key, err)
	}
}

// embedAll embeds texts in BatchSize groups with up to EmbedWorkers
// requests in flight, keeping output aligned with input.
func (s *DocumentIndexService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if s.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedWorkers)

	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		lo, hi := start, min(start+s.cfg.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := s.embedder.EmbedTexts(gctx, texts[lo:hi])
			if err != nil {
				return err
			}
			if len(vecs) != hi-lo {
				return fmt.Errorf("%w: asked for %d vectors, got %d", core.ErrEmbedding, hi-lo, len(vecs))
			}
			copy(out[lo:hi], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, core.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	return out, nil
}

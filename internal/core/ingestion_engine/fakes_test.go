package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/vectorindex"
	"github.com/markdave123-py/railchat/internal/models"
)

type memStore struct {
	mu         sync.Mutex
	docs       map[string]*models.Document
	order      []string
	chunks     map[string][]models.DocumentChunk
	failCreate error
	listCalls  int
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*models.Document{}, chunks: map[string][]models.DocumentChunk{}}
}

func (m *memStore) CreateDocumentWithChunks(_ context.Context, doc *models.Document, chunks []models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	d := *doc
	d.ChunkCount = len(chunks)
	m.docs[doc.ID] = &d
	m.order = append(m.order, doc.ID)
	m.chunks[doc.ID] = append([]models.DocumentChunk(nil), chunks...)
	return nil
}

func (m *memStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) ListDocuments(_ context.Context) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, *m.docs[m.order[i]])
	}
	return out, nil
}

func (m *memStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	for i, d := range m.order {
		if d == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) ListIndexedChunks(_ context.Context) ([]models.IndexedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []models.IndexedChunk
	for _, id := range m.order {
		chunks := append([]models.DocumentChunk(nil), m.chunks[id]...)
		sort.Slice(chunks, func(a, b int) bool { return chunks[a].Position < chunks[b].Position })
		for _, ch := range chunks {
			out = append(out, models.IndexedChunk{DocumentChunk: ch, FileName: m.docs[id].FileName})
		}
	}
	return out, nil
}

func (m *memStore) CountChunks(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.chunks {
		n += len(c)
	}
	return n, nil
}

type memObjects struct {
	mu         sync.Mutex
	files      map[string][]byte
	failUpload error
}

func newMemObjects() *memObjects { return &memObjects{files: map[string][]byte{}} }

func (o *memObjects) UploadFile(_ context.Context, key string, data []byte, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failUpload != nil {
		return "", o.failUpload
	}
	o.files[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

func (o *memObjects) GetFile(_ context.Context, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.files[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return b, nil
}

func (o *memObjects) Exists(_ context.Context, key string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.files[key]
	return ok, nil
}

func (o *memObjects) DeleteFile(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.files, key)
	return nil
}

// tableEmbedder returns fixed vectors for known texts and a length-based
// vector otherwise.
type tableEmbedder struct {
	mu    sync.Mutex
	dim   int
	table map[string][]float32
	fail  map[string]bool
	calls int
}

func newTableEmbedder(dim int) *tableEmbedder {
	return &tableEmbedder{dim: dim, table: map[string][]float32{}, fail: map[string]bool{}}
}

func (e *tableEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.fail[t] {
			return nil, fmt.Errorf("%w: model refused %q", core.ErrEmbedding, t)
		}
		if v, ok := e.table[t]; ok {
			out[i] = v
			continue
		}
		v := make([]float32, e.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// staticExtractor maps a source name to its text or error.
type staticExtractor struct {
	texts map[string]string
	errs  map[string]error
	calls int
}

func (x *staticExtractor) Extract(_ context.Context, src core.Source) (*core.ExtractedText, error) {
	x.calls++
	if err, ok := x.errs[src.Name()]; ok {
		return nil, err
	}
	text, ok := x.texts[src.Name()]
	if !ok {
		return nil, core.NewExtractionError(src.Name(), core.ReasonUnsupportedFormat, errors.New("unknown source"))
	}
	return &core.ExtractedText{Text: text, Strategy: "static"}, nil
}

type memSnapshots struct {
	mu       sync.Mutex
	snap     *vectorindex.Snapshot
	saves    int
	failSave error
	failLoad error
}

func (s *memSnapshots) Load(_ context.Context) (*vectorindex.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad != nil {
		return nil, s.failLoad
	}
	return s.snap, nil
}

func (s *memSnapshots) Save(_ context.Context, snap *vectorindex.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	s.saves++
	s.snap = snap
	return nil
}

func (s *memSnapshots) entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return -1
	}
	return len(s.snap.Entries)
}

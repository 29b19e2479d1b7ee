package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/markdave123-py/railchat/internal/core"
)

const snapshotVersion = 1

// ChunkRef is the metadata an index id resolves to.
type ChunkRef struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
}

type SnapshotEntry struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
	Ref    ChunkRef  `json:"ref"`
}

// Snapshot is the index content and its id->metadata mapping serialised as
// a single unit.
type Snapshot struct {
	Version     int             `json:"version"`
	Dimension   int             `json:"dimension"`
	Granularity string          `json:"granularity"`
	SavedAt     time.Time       `json:"saved_at"`
	Entries     []SnapshotEntry `json:"entries"`
}

// Validate checks version and per-entry dimension.
func (s *Snapshot) Validate() error {
	if s.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", core.ErrIndexIO, s.Version)
	}
	for _, e := range s.Entries {
		if len(e.Vector) != s.Dimension {
			return fmt.Errorf("%w: entry %s: %w", core.ErrIndexIO, e.ID,
				&core.DimensionError{Expected: s.Dimension, Got: len(e.Vector)})
		}
	}
	return nil
}

// SnapshotStore persists snapshots. Load returns (nil, nil) when no
// snapshot has been written yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	s.Version = snapshotVersion
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", core.ErrIndexIO, err)
	}
	return b, nil
}

func decodeSnapshot(b []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", core.ErrIndexIO, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// FileSnapshotStore writes the snapshot to a local file. The file is
// replaced with a rename so a crash leaves either the old or the new
// snapshot on disk.
type FileSnapshotStore struct {
	path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (f *FileSnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrIndexIO, f.path, err)
	}
	return decodeSnapshot(b)
}

func (f *FileSnapshotStore) Save(ctx context.Context, s *Snapshot) error {
	b, err := encodeSnapshot(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", core.ErrIndexIO, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", core.ErrIndexIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %w", core.ErrIndexIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %w", core.ErrIndexIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", core.ErrIndexIO, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: rename: %w", core.ErrIndexIO, err)
	}
	return nil
}

// BlobSnapshotStore keeps the snapshot as one object in blob storage; a
// single PUT replaces it whole.
type BlobSnapshotStore struct {
	obj core.ObjectClient
	key string
}

func NewBlobSnapshotStore(obj core.ObjectClient, key string) *BlobSnapshotStore {
	return &BlobSnapshotStore{obj: obj, key: key}
}

func (b *BlobSnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	ok, err := b.obj.Exists(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", core.ErrIndexIO, b.key, err)
	}
	if !ok {
		return nil, nil
	}
	data, err := b.obj.GetFile(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", core.ErrIndexIO, b.key, err)
	}
	return decodeSnapshot(data)
}

func (b *BlobSnapshotStore) Save(ctx context.Context, s *Snapshot) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	if _, err := b.obj.UploadFile(ctx, b.key, data, "application/json"); err != nil {
		return fmt.Errorf("%w: put %s: %w", core.ErrIndexIO, b.key, err)
	}
	return nil
}

var (
	_ SnapshotStore = (*FileSnapshotStore)(nil)
	_ SnapshotStore = (*BlobSnapshotStore)(nil)
)

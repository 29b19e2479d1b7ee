package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/vectorindex"
	"github.com/markdave123-py/railchat/internal/models"
)

// Load restores the index at startup. The snapshot is used when it matches
// the database chunk count; otherwise the index is rebuilt from the stored
// chunk vectors and a fresh snapshot is written.
func (s *DocumentIndexService) Load(ctx context.Context) error {
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		log.Printf("DocumentIndex: snapshot unreadable, rebuilding: %v", err)
		snap = nil
	}
	if snap != nil && snap.Dimension != s.cfg.Dimension {
		log.Printf("DocumentIndex: snapshot dimension %d does not match %d, rebuilding", snap.Dimension, s.cfg.Dimension)
		snap = nil
	}

	if snap != nil && snap.Granularity != "" && snap.Granularity != s.cfg.Granularity {
		log.Printf("DocumentIndex: snapshot was built with %q granularity, configured %q; existing documents keep their units, new ones use %q",
			snap.Granularity, s.cfg.Granularity, s.cfg.Granularity)
	}

	count, err := s.db.CountChunks(ctx)
	if err != nil {
		if snap == nil {
			return fmt.Errorf("count chunks: %w", err)
		}
		log.Printf("DocumentIndex: database unavailable, serving snapshot as is: %v", err)
		return s.applySnapshot(snap)
	}

	if snap != nil && len(snap.Entries) == count {
		if err := s.applySnapshot(snap); err != nil {
			return err
		}
		log.Printf("DocumentIndex: loaded %d entries from snapshot", count)
		return nil
	}
	if snap != nil {
		log.Printf("DocumentIndex: snapshot has %d entries, database has %d, rebuilding", len(snap.Entries), count)
	}

	n, err := s.Rebuild(ctx)
	if err != nil && !errors.Is(err, core.ErrIndexIO) {
		return err
	}
	// an unwritten snapshot only costs another rebuild on the next start
	log.Printf("DocumentIndex: rebuilt %d entries from database", n)
	return nil
}

func (s *DocumentIndexService) applySnapshot(snap *vectorindex.Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries := make([]vectorindex.Entry, len(snap.Entries))
	catalog := make(map[string]vectorindex.ChunkRef, len(snap.Entries))
	for i, e := range snap.Entries {
		entries[i] = vectorindex.Entry{ID: e.ID, Vector: e.Vector}
		catalog[e.ID] = e.Ref
	}
	if err := s.index.Replace(entries); err != nil {
		return err
	}
	s.catMu.Lock()
	s.catalog = catalog
	s.catMu.Unlock()
	return nil
}

// Rebuild repopulates the index from every chunk in the database and
// writes a new snapshot. It returns the number of entries indexed.
func (s *DocumentIndexService) Rebuild(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *DocumentIndexService) rebuildLocked(ctx context.Context) (int, error) {
	chunks, err := s.db.ListIndexedChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chunks: %w", err)
	}

	entries := make([]vectorindex.Entry, len(chunks))
	catalog := make(map[string]vectorindex.ChunkRef, len(chunks))
	for i, ch := range chunks {
		entries[i] = vectorindex.Entry{ID: ch.ID, Vector: ch.Embedding}
		catalog[ch.ID] = vectorindex.ChunkRef{
			DocumentID: ch.DocumentID,
			FileName:   ch.FileName,
			Position:   ch.Position,
			Text:       ch.Text,
		}
	}
	if err := s.index.Replace(entries); err != nil {
		return 0, fmt.Errorf("rebuild: %w", err)
	}
	s.catMu.Lock()
	s.catalog = catalog
	s.catMu.Unlock()

	if err := s.saveSnapshotLocked(ctx); err != nil {
		return len(entries), err
	}
	return len(entries), nil
}

// RemoveDocument deletes a document, its chunks, its vectors and its blob.
// The snapshot is rewritten before returning.
func (s *DocumentIndexService) RemoveDocument(ctx context.Context, who models.Identity, documentID string) error {
	if !who.Role.CanIngest() {
		return core.ErrForbidden
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc, err := s.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.db.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	s.catMu.RLock()
	owned := make(map[string]struct{})
	for id, ref := range s.catalog {
		if ref.DocumentID == documentID {
			owned[id] = struct{}{}
		}
	}
	s.catMu.RUnlock()

	removed := s.index.Remove(func(id string) bool {
		_, ok := owned[id]
		return ok
	})
	s.catMu.Lock()
	for id := range owned {
		delete(s.catalog, id)
	}
	s.catMu.Unlock()
	log.Printf("DocumentIndex: removed %s (%d vectors)", documentID, removed)

	s.deleteBlob(doc.StorageKey)

	if err := s.saveSnapshotLocked(ctx); err != nil {
		return err
	}
	return nil
}

// SaveSnapshot persists the current index and catalog.
func (s *DocumentIndexService) SaveSnapshot(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveSnapshotLocked(ctx)
}

func (s *DocumentIndexService) saveSnapshotLocked(ctx context.Context) error {
	entries := s.index.Entries()

	s.catMu.RLock()
	out := make([]vectorindex.SnapshotEntry, 0, len(entries))
	for _, e := range entries {
		ref, ok := s.catalog[e.ID]
		if !ok {
			continue
		}
		out = append(out, vectorindex.SnapshotEntry{ID: e.ID, Vector: e.Vector, Ref: ref})
	}
	s.catMu.RUnlock()

	snap := &vectorindex.Snapshot{
		Dimension:   s.cfg.Dimension,
		Granularity: s.cfg.Granularity,
		SavedAt:     s.now().UTC(),
		Entries:     out,
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		if !errors.Is(err, core.ErrIndexIO) {
			err = fmt.Errorf("%w: %w", core.ErrIndexIO, err)
		}
		log.Printf("DocumentIndex: snapshot save failed: %v", err)
		return err
	}
	return nil
}

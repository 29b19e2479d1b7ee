package services

import (
	"context"
	"fmt"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/railchat/internal/models"
)

// DocumentService is the catalogue view over ingested documents. Adding
// and removing go through the ingestor so the index stays in step.
type DocumentService struct {
	db       core.DocumentStore
	obj      core.ObjectClient
	ingestor ingestion_engine.Ingestor
}

func NewDocumentService(db core.DocumentStore, obj core.ObjectClient, ingestor ingestion_engine.Ingestor) *DocumentService {
	return &DocumentService{db: db, obj: obj, ingestor: ingestor}
}

func (s *DocumentService) Ingest(ctx context.Context, who models.Identity, items []core.Source) ([]ingestion_engine.IngestResult, error) {
	return s.ingestor.IngestBatch(ctx, who, items)
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.db.GetDocumentByID(ctx, id)
}

// File returns the document and the stored bytes behind it: the upload
// itself, or the scraped text for a web page.
func (s *DocumentService) File(ctx context.Context, id string) (*models.Document, []byte, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.StorageKey == "" {
		return nil, nil, fmt.Errorf("document %s has no stored file: %w", id, core.ErrNotFound)
	}
	data, err := s.obj.GetFile(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// List returns every document, newest first.
func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	docs, err := s.db.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

func (s *DocumentService) Delete(ctx context.Context, who models.Identity, id string) error {
	return s.ingestor.RemoveDocument(ctx, who, id)
}

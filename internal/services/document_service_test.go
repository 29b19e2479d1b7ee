package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
)

type docCatalog struct {
	core.DocumentStore
	docs map[string]models.Document
}

func (d docCatalog) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	doc, ok := d.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &doc, nil
}

type blobMap struct {
	core.ObjectClient
	files map[string][]byte
}

func (b blobMap) GetFile(_ context.Context, key string) ([]byte, error) {
	data, ok := b.files[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

func TestDocumentService_File(t *testing.T) {
	ctx := context.Background()
	catalog := docCatalog{docs: map[string]models.Document{
		"d1":     {ID: "d1", FileName: "A.pdf", StorageKey: "documents/d1/A.pdf"},
		"legacy": {ID: "legacy", FileName: "old.pdf"},
		"lost":   {ID: "lost", FileName: "gone.pdf", StorageKey: "documents/lost/gone.pdf"},
	}}
	blobs := blobMap{files: map[string][]byte{"documents/d1/A.pdf": []byte("%PDF")}}
	svc := NewDocumentService(catalog, blobs, nil)

	doc, data, err := svc.File(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "A.pdf", doc.FileName)
	assert.Equal(t, []byte("%PDF"), data)

	tests := []struct {
		name string
		id   string
	}{
		{"unknown document", "nope"},
		{"no stored file", "legacy"},
		{"blob missing", "lost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.File(ctx, tt.id)
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

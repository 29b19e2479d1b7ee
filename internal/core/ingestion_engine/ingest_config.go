package ingestion_engine

import (
	"context"
	"time"

	"github.com/markdave123-py/railchat/internal/config"
	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
)

// IngestConfig tunes ingestion and retrieval.
//
// ChunkSize:    characters per chunk under chunk granularity.
// Granularity:  "chunk" or "document".
// Dimension:    embedding width; every stored vector must match it.
// TopK:         neighbours fetched per query.
// MaxDistance:  hits farther than this are dropped; 0 disables the filter.
// BatchSize:    texts per embedding request.
// EmbedWorkers: embedding requests in flight per document.
// EmbedTimeout: budget for embedding one document or query.
type IngestConfig struct {
	ChunkSize    int
	Granularity  string
	Dimension    int
	TopK         int
	MaxDistance  float32
	BatchSize    int
	EmbedWorkers int
	EmbedTimeout time.Duration
}

// NewIngestConfig derives the ingestion knobs from the service config.
func NewIngestConfig(cfg *config.Config) *IngestConfig {
	return &IngestConfig{
		ChunkSize:    cfg.ChunkSize,
		Granularity:  cfg.Granularity,
		Dimension:    cfg.EmbedDim,
		TopK:         cfg.TopK,
		MaxDistance:  float32(cfg.MaxDistance),
		BatchSize:    cfg.EmbedBatchSize,
		EmbedWorkers: cfg.EmbedWorkers,
		EmbedTimeout: cfg.EmbedTimeout,
	}
}

func (c *IngestConfig) withDefaults() *IngestConfig {
	out := *c
	if out.ChunkSize <= 0 {
		out.ChunkSize = 512
	}
	if out.Granularity == "" {
		out.Granularity = config.GranularityChunk
	}
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 16
	}
	if out.EmbedWorkers <= 0 {
		out.EmbedWorkers = 1
	}
	return &out
}

// IngestResult reports what happened to one submitted item.
type IngestResult struct {
	Source     string `json:"source"`
	DocumentID string `json:"document_id,omitempty"`
	Chunks     int    `json:"chunks"`
	Err        error  `json:"-"`
}

// OK reports whether the item was committed.
func (r IngestResult) OK() bool { return r.Err == nil }

// Ingestor adds and removes documents from the searchable corpus.
type Ingestor interface {
	IngestBatch(ctx context.Context, who models.Identity, items []core.Source) ([]IngestResult, error)
	RemoveDocument(ctx context.Context, who models.Identity, documentID string) error
}

// Retriever finds the stored text closest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (*Retrieval, error)
}

package core

import (
	"context"
)

// Source is one item handed to ingestion: either uploaded bytes or a URL.
type Source struct {
	FileName    string
	ContentType string
	Data        []byte
	URL         string
}

// Name is the label used in reports and provenance.
func (s Source) Name() string {
	if s.URL != "" {
		return s.URL
	}
	return s.FileName
}

// ExtractedText is the plain text pulled out of a Source.
type ExtractedText struct {
	Text  string
	Title string
	// Strategy names the extractor that produced Text.
	Strategy string
}

// TextExtractor turns a Source into plain text or an *ExtractionError.
type TextExtractor interface {
	Extract(ctx context.Context, src Source) (*ExtractedText, error)
}

// ExtractionStrategy is one way of getting text out of raw bytes. Strategies
// are tried in priority order until one yields non-blank text.
type ExtractionStrategy interface {
	Name() string
	Supports(contentType string) bool
	// Available is false when the strategy cannot run in this process
	// (missing binary or license).
	Available() bool
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

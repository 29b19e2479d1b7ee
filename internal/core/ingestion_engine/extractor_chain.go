package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/markdave123-py/railchat/internal/core"
)

var _ core.TextExtractor = (*ExtractorChain)(nil)

// ExtractorChain routes URLs to the web fetcher and uploaded bytes through
// an ordered list of strategies, falling back until one yields text.
type ExtractorChain struct {
	web        *URLExtractor
	strategies []core.ExtractionStrategy
	timeout    time.Duration
}

func NewExtractorChain(web *URLExtractor, timeout time.Duration, strategies ...core.ExtractionStrategy) *ExtractorChain {
	return &ExtractorChain{web: web, strategies: strategies, timeout: timeout}
}

func (c *ExtractorChain) Extract(ctx context.Context, src core.Source) (*core.ExtractedText, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if src.URL != "" {
		if c.web == nil {
			return nil, core.NewExtractionError(src.URL, core.ReasonUnsupportedFormat, errors.New("url ingestion disabled"))
		}
		return c.web.Fetch(ctx, src.URL)
	}

	ct := DetectContentType(src)
	var (
		supported, ran bool
		errs           []error
	)
	for _, s := range c.strategies {
		if !s.Supports(ct) {
			continue
		}
		supported = true
		if !s.Available() {
			continue
		}
		ran = true

		text, err := s.Extract(ctx, src.Data, ct)
		if err != nil {
			log.Printf("Extractor: %s failed on %q: %v", s.Name(), src.Name(), err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return &core.ExtractedText{Text: text, Title: src.FileName, Strategy: s.Name()}, nil
		}
	}

	if !supported {
		return nil, core.NewExtractionError(src.Name(), core.ReasonUnsupportedFormat, fmt.Errorf("content type %q", ct))
	}
	if !ran {
		return nil, core.NewExtractionError(src.Name(), core.ReasonUnsupportedFormat, noExtractorError(ct))
	}
	return nil, core.NewExtractionError(src.Name(), core.ReasonNoTextFound, errors.Join(errs...))
}

// CanExtract reports whether some available strategy supports ct.
func (c *ExtractorChain) CanExtract(ct string) bool {
	for _, s := range c.strategies {
		if s.Supports(ct) && s.Available() {
			return true
		}
	}
	return false
}

func noExtractorError(ct string) error {
	if ct == "application/pdf" {
		return errors.New("no PDF extractor available (install pdftotext or set UNIDOC_LICENSE_KEY)")
	}
	return fmt.Errorf("no extractor available for %q", ct)
}

// DetectContentType trusts an explicit type, then the file extension, then
// sniffs the bytes. Parameters such as charset are dropped.
func DetectContentType(src core.Source) string {
	ct := src.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(src.FileName)))
	}
	if ct == "" {
		ct = http.DetectContentType(src.Data)
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	return strings.ToLower(ct)
}

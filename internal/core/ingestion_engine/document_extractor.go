package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/railchat/internal/core"
)

var _ core.ExtractionStrategy = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.ExtractionStrategy using sajari/docconv.
// PDF conversion shells out to pdftotext, so PDFs are only claimed when
// that binary is on PATH.
type DocconvExtractor struct {
	useReadability bool
	pdfSupported   bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	_, err := exec.LookPath("pdftotext")
	if err != nil {
		log.Printf("docconv: pdftotext not found, PDFs will need another extractor")
	}
	return &DocconvExtractor{useReadability: useReadability, pdfSupported: err == nil}
}

func (e *DocconvExtractor) Name() string { return "docconv" }

func (e *DocconvExtractor) Supports(contentType string) bool {
	switch contentType {
	case "application/pdf":
		return e.pdfSupported
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text",
		"application/rtf", "text/rtf",
		"text/html", "text/xml", "application/xml", "text/plain":
		return true
	}
	return false
}

func (e *DocconvExtractor) Available() bool { return true }

// Extract converts data to text. docconv has no context support, so the
// conversion runs in its own goroutine and the caller stops waiting once
// ctx is done.
func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
		if err != nil {
			done <- result{err: fmt.Errorf("docconv %s: %w", contentType, err)}
			return
		}
		done <- result{text: strings.TrimSpace(res.Body)}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("docconv %s: %w", contentType, ctx.Err())
	}
}

package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/markdave123-py/railchat/internal/core"
)

var _ core.ExtractionStrategy = (*UnipdfExtractor)(nil)

var (
	licenseOnce sync.Once
	licenseErr  error
)

// UnipdfExtractor reads PDF text layers natively with unipdf. It needs a
// metered license key; without one it reports itself unavailable and the
// chain falls through to the next strategy.
type UnipdfExtractor struct {
	available bool
}

func NewUnipdfExtractor(licenseKey string) *UnipdfExtractor {
	if licenseKey == "" {
		return &UnipdfExtractor{}
	}
	licenseOnce.Do(func() {
		licenseErr = license.SetMeteredKey(licenseKey)
	})
	if licenseErr != nil {
		log.Printf("unipdf: license rejected: %v", licenseErr)
		return &UnipdfExtractor{}
	}
	return &UnipdfExtractor{available: true}
}

func (u *UnipdfExtractor) Name() string { return "unipdf" }

func (u *UnipdfExtractor) Supports(contentType string) bool {
	return contentType == "application/pdf"
}

func (u *UnipdfExtractor) Available() bool { return u.available }

func (u *UnipdfExtractor) Extract(ctx context.Context, data []byte, _ string) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unipdf: open: %w", err)
	}
	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return "", fmt.Errorf("unipdf: %w", err)
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil || !ok {
			return "", fmt.Errorf("unipdf: document is encrypted")
		}
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("unipdf: page count: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page, err := reader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("unipdf: page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("unipdf: page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("unipdf: page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

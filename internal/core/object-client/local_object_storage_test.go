package objectclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/railchat/internal/core"
)

func TestLocalClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)

	key := DocumentKey("doc-1", "annual report.pdf")
	assert.Equal(t, "documents/doc-1/annual_report.pdf", key)

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	url, err := c.UploadFile(ctx, key, []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "annual_report.pdf")

	ok, err = c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := c.GetFile(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	require.NoError(t, c.DeleteFile(ctx, key))
	_, err = c.GetFile(ctx, key)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLocalClient_RejectsEscapingKeys(t *testing.T) {
	c, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)

	_, err = c.UploadFile(context.Background(), "../outside.txt", []byte("x"), "text/plain")
	assert.Error(t, err)
}

func TestScrapedKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "scraped/website_content_20240309_140507.txt", ScrapedKey(at))
}

package ingestion_engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/railchat/internal/core"
)

func extractionReason(t *testing.T, err error) core.ExtractionReason {
	t.Helper()
	var ee *core.ExtractionError
	require.True(t, errors.As(err, &ee), "expected *core.ExtractionError, got %v", err)
	return ee.Reason
}

func TestURLExtractor_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Track Safety</title><style>p{color:red}</style></head>
<body><nav>Menu</nav><main><h1>Signals</h1><p>Red means   stop.</p><script>var x = "hidden";</script></main></body></html>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("line one\n\n  line two  \n"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><script>only()</script></body></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/binary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	x := NewURLExtractor(500*time.Millisecond, 1<<20)
	ctx := context.Background()

	t.Run("html keeps visible main content", func(t *testing.T) {
		got, err := x.Fetch(ctx, srv.URL+"/page")
		require.NoError(t, err)
		assert.Equal(t, "Signals\nRed means stop.", got.Text)
		assert.Equal(t, "Track Safety", got.Title)
		assert.NotContains(t, got.Text, "hidden")
		assert.NotContains(t, got.Text, "Menu")
	})

	t.Run("plain text", func(t *testing.T) {
		got, err := x.Fetch(ctx, srv.URL+"/plain")
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two", got.Text)
	})

	t.Run("nothing visible", func(t *testing.T) {
		_, err := x.Fetch(ctx, srv.URL+"/empty")
		assert.Equal(t, core.ReasonNoTextFound, extractionReason(t, err))
	})

	t.Run("non 2xx", func(t *testing.T) {
		_, err := x.Fetch(ctx, srv.URL+"/missing")
		assert.Equal(t, core.ReasonNetworkError, extractionReason(t, err))
	})

	t.Run("non text content", func(t *testing.T) {
		_, err := x.Fetch(ctx, srv.URL+"/binary")
		assert.Equal(t, core.ReasonUnsupportedFormat, extractionReason(t, err))
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := x.Fetch(ctx, srv.URL+"/slow")
		assert.Equal(t, core.ReasonNetworkError, extractionReason(t, err))
	})

	t.Run("not a url", func(t *testing.T) {
		_, err := x.Fetch(ctx, "ftp://example.com/file")
		assert.Equal(t, core.ReasonUnsupportedFormat, extractionReason(t, err))
	})
}

func TestHTMLVisibleText_FallsBackToBody(t *testing.T) {
	text, _, err := htmlVisibleText([]byte(`<html><body><div>First <b>bold</b></div><p>Second</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "bold", "Second"}, strings.Split(text, "\n"))
}

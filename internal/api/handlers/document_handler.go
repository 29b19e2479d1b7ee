package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/railchat/internal/api/middlewares"
	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/railchat/internal/models"
)

const maxUploadBytes = 64 << 20

// DocumentManager is what the document endpoints need from the service layer.
type DocumentManager interface {
	List(ctx context.Context) ([]models.Document, error)
	Ingest(ctx context.Context, who models.Identity, items []core.Source) ([]ingestion_engine.IngestResult, error)
	Delete(ctx context.Context, who models.Identity, id string) error
	File(ctx context.Context, id string) (*models.Document, []byte, error)
}

type DocumentHandler struct {
	docs DocumentManager
}

func NewDocumentHandler(docs DocumentManager) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

type ingestItem struct {
	Source     string `json:"source"`
	DocumentID string `json:"document_id,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
	Error      string `json:"error,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

type ingestResponse struct {
	Results []ingestItem `json:"results"`
	Warning string       `json:"warning,omitempty"`
}

// UploadDocuments ingests every file sent under the multipart field "files".
func (h *DocumentHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		badRequest(w, `no files in field "files"`)
		return
	}

	sources := make([]core.Source, 0, len(headers))
	for _, fh := range headers {
		src, err := readUpload(fh)
		if err != nil {
			badRequest(w, fmt.Sprintf("could not read %q", fh.Filename))
			return
		}
		sources = append(sources, src)
	}
	h.ingest(w, r, sources)
}

func readUpload(fh *multipart.FileHeader) (core.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return core.Source{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return core.Source{}, err
	}
	return core.Source{
		FileName:    filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

type urlsRequest struct {
	URLs []string `json:"urls"`
	Text string   `json:"text"`
}

// IngestURLs accepts {"urls": [...]} and/or {"text": "one URL per line"}.
func (h *DocumentHandler) IngestURLs(w http.ResponseWriter, r *http.Request) {
	var req urlsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}

	urls := ParseURLList(req.Text)
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		badRequest(w, "no urls given")
		return
	}

	sources := make([]core.Source, len(urls))
	for i, u := range urls {
		sources[i] = core.Source{URL: u}
	}
	h.ingest(w, r, sources)
}

// ParseURLList splits text into one URL per non-blank line.
func ParseURLList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (h *DocumentHandler) ingest(w http.ResponseWriter, r *http.Request, sources []core.Source) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, "ingest", "", core.ErrAuth)
		return
	}

	results, err := h.docs.Ingest(r.Context(), *id, sources)
	if results == nil && err != nil {
		writeError(w, "ingest", "", err)
		return
	}

	resp := ingestResponse{Results: make([]ingestItem, len(results))}
	for i, res := range results {
		item := ingestItem{Source: res.Source, DocumentID: res.DocumentID, Chunks: res.Chunks}
		if res.Err != nil {
			item.Error = core.UserMessage("ingest", res.Source, res.Err)
			item.Kind = core.Kind(res.Err)
		}
		resp.Results[i] = item
	}
	if err != nil {
		resp.Warning = core.UserMessage("save index", "", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		writeError(w, "list documents", "", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// DownloadDocument returns the stored original of a document.
func (h *DocumentHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	doc, data, err := h.docs.File(r.Context(), docID)
	if err != nil {
		writeError(w, "download", docID, err)
		return
	}

	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	name := doc.FileName
	if doc.SourceType == models.SourceTypeURL {
		name = path.Base(doc.StorageKey)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	id, _ := middleware.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, "delete", docID, core.ErrAuth)
		return
	}

	if err := h.docs.Delete(r.Context(), *id, docID); err != nil {
		writeError(w, "delete", docID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

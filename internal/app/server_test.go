package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/railchat/internal/config"
	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/railchat/internal/models"
	"github.com/markdave123-py/railchat/internal/services"
)

type stubAccounts struct{}

func (stubAccounts) Signup(_ context.Context, firstName, email, _ string) (*models.User, error) {
	return &models.User{ID: "u-new", FirstName: firstName, Email: email, Role: models.RoleUser}, nil
}

func (stubAccounts) VerifyCredentials(context.Context, string, string) (*models.Identity, error) {
	return nil, core.ErrAuth
}

func (stubAccounts) IssueToken(id models.Identity) (string, error) { return "tok-" + id.UserID, nil }

func (stubAccounts) ParseToken(token string) (*models.Identity, error) {
	switch token {
	case "user-token":
		return &models.Identity{UserID: "u1", Email: "u@example.com", Role: models.RoleUser}, nil
	case "admin-token":
		return &models.Identity{UserID: "a1", Email: "a@example.com", Role: models.RoleAdmin}, nil
	}
	return nil, core.ErrAuth
}

type stubDocs struct{ deleted []string }

func (s *stubDocs) List(context.Context) ([]models.Document, error) {
	return []models.Document{{ID: "d1", FileName: "A.pdf"}}, nil
}

func (s *stubDocs) Ingest(_ context.Context, _ models.Identity, items []core.Source) ([]ingestion_engine.IngestResult, error) {
	out := make([]ingestion_engine.IngestResult, len(items))
	for i, it := range items {
		out[i] = ingestion_engine.IngestResult{Source: it.Name(), DocumentID: "d", Chunks: 1}
	}
	return out, nil
}

func (s *stubDocs) Delete(_ context.Context, _ models.Identity, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubDocs) File(_ context.Context, id string) (*models.Document, []byte, error) {
	if id != "d1" {
		return nil, nil, core.ErrNotFound
	}
	return &models.Document{ID: "d1", FileName: "A.pdf", ContentType: "application/pdf"}, []byte("%PDF"), nil
}

type stubChat struct{ last *services.SessionContext }

func (s *stubChat) Submit(_ context.Context, sc *services.SessionContext, req services.ChatRequest) (*services.ChatResult, error) {
	s.last = sc
	turn := models.ChatTurn{QueryText: req.Query, AnswerText: "answer", SourceLabel: services.GeneralKnowledgeLabel}
	sc.History = append(sc.History, turn)
	return &services.ChatResult{Turn: turn}, nil
}

type stubSessions struct{}

func (stubSessions) List(context.Context, string) ([]models.ChatSession, error) {
	return []models.ChatSession{}, nil
}

func (stubSessions) Turns(context.Context, models.Identity, string) ([]models.ChatTurn, error) {
	return nil, core.ErrNotFound
}

func (stubSessions) Owns(context.Context, models.Identity, string) bool { return false }

func newTestRouter(t *testing.T) (http.Handler, *stubDocs, *stubChat) {
	t.Helper()
	cfg := config.Defaults()
	docs, chat := &stubDocs{}, &stubChat{}
	return newRouter(cfg, stubAccounts{}, docs, chat, stubSessions{}), docs, chat
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Authorization(t *testing.T) {
	h, docs, _ := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"documents need a token", http.MethodGet, "/api/documents", "", "", http.StatusUnauthorized},
		{"bad token rejected", http.MethodGet, "/api/documents", "forged", "", http.StatusUnauthorized},
		{"user may list documents", http.MethodGet, "/api/documents", "user-token", "", http.StatusOK},
		{"user may not ingest", http.MethodPost, "/api/documents/urls", "user-token", `{"urls":["https://example.com"]}`, http.StatusForbidden},
		{"user may not delete", http.MethodDelete, "/api/documents/d1", "user-token", "", http.StatusForbidden},
		{"download needs a token", http.MethodGet, "/api/documents/d1/file", "", "", http.StatusUnauthorized},
		{"user may download", http.MethodGet, "/api/documents/d1/file", "user-token", "", http.StatusOK},
		{"admin may delete", http.MethodDelete, "/api/documents/d1", "admin-token", "", http.StatusNoContent},
		{"sessions need a token", http.MethodGet, "/api/chat/sessions", "", "", http.StatusUnauthorized},
		{"foreign session is hidden", http.MethodGet, "/api/chat/sessions/s9", "user-token", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, []string{"d1"}, docs.deleted)
}

func TestRouter_SignupIsPublic(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := do(h, http.MethodPost, "/api/signup", "", `{"first_name":"Ada","email":"ada@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tok-u-new", body["token"])
	assert.Equal(t, "User", body["role"])
}

func TestRouter_AnonymousChat(t *testing.T) {
	h, _, chat := newTestRouter(t)

	rec := do(h, http.MethodPost, "/api/chat/query", "", `{"query":"hello","mode":"general"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, chat.last)
	assert.Nil(t, chat.last.User)

	rec = do(h, http.MethodPost, "/api/chat/query", "user-token", `{"query":"hello","mode":"general"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, chat.last.User)
	assert.Equal(t, "u1", chat.last.User.UserID)

	rec = do(h, http.MethodPost, "/api/chat/query", "forged", `{"query":"hello"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/documents/d1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

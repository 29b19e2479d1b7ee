package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/railchat/internal/api/middlewares"
	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
	"github.com/markdave123-py/railchat/internal/services"
)

// Chatter answers one query within a session context.
type Chatter interface {
	Submit(ctx context.Context, sc *services.SessionContext, req services.ChatRequest) (*services.ChatResult, error)
}

// SessionReader is the read side of the session store.
type SessionReader interface {
	List(ctx context.Context, ownerID string) ([]models.ChatSession, error)
	Turns(ctx context.Context, who models.Identity, sessionID string) ([]models.ChatTurn, error)
	Owns(ctx context.Context, who models.Identity, sessionID string) bool
}

type ChatHandler struct {
	chat     Chatter
	sessions SessionReader
}

func NewChatHandler(chat Chatter, sessions SessionReader) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions}
}

// ChatRequest is the body of POST /api/chat/query. History is the
// client-held ephemeral transcript; it is returned with the new turn
// appended.
type ChatRequest struct {
	Query     string            `json:"query"`
	Mode      string            `json:"mode"`
	Policy    string            `json:"policy,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	History   []models.ChatTurn `json:"history,omitempty"`
}

type ChatResponse struct {
	Answer    string            `json:"answer"`
	Source    string            `json:"source"`
	Sources   []string          `json:"sources,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Persisted bool              `json:"persisted"`
	Turn      models.ChatTurn   `json:"turn"`
	History   []models.ChatTurn `json:"history"`
}

func (h *ChatHandler) QueryDocument(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}

	mode, err := services.ParseMode(req.Mode)
	if err != nil {
		writeError(w, "query", req.Query, err)
		return
	}

	sc := &services.SessionContext{History: req.History}
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		sc.User = id
		if req.SessionID != "" {
			if !h.sessions.Owns(r.Context(), *id, req.SessionID) {
				writeError(w, "query", req.Query, core.ErrNotFound)
				return
			}
			sc.SessionID = req.SessionID
		}
	}

	res, err := h.chat.Submit(r.Context(), sc, services.ChatRequest{Query: req.Query, Mode: mode, Policy: req.Policy})
	if err != nil {
		writeError(w, "query", req.Query, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:    res.Turn.AnswerText,
		Source:    res.Turn.SourceLabel,
		Sources:   res.Sources,
		SessionID: res.SessionID,
		Persisted: res.Persisted,
		Turn:      res.Turn,
		History:   sc.History,
	})
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, "list sessions", "", core.ErrAuth)
		return
	}
	sessions, err := h.sessions.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, "list sessions", "", err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *ChatHandler) SessionTurns(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, "load session", sessionID, core.ErrAuth)
		return
	}
	turns, err := h.sessions.Turns(r.Context(), *id, sessionID)
	if err != nil {
		writeError(w, "load session", sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

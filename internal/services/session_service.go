package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
)

// SessionService persists chat sessions and their turns. Write failures on
// the chat path are reported to the caller, which degrades to ephemeral
// history instead of failing the answer.
type SessionService struct {
	db  core.SessionStore
	now func() time.Time
}

func NewSessionService(db core.SessionStore) *SessionService {
	return &SessionService{db: db, now: time.Now}
}

// Create opens a session for ownerID and returns its id, or "" if the store
// could not be written.
func (s *SessionService) Create(ctx context.Context, ownerID, title string) string {
	session := &models.ChatSession{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     title,
		Status:    models.SessionStatusActive,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.CreateSession(ctx, session); err != nil {
		log.Printf("Sessions: create for %s failed, continuing without persistence: %v", ownerID, err)
		return ""
	}
	return session.ID
}

func (s *SessionService) AppendTurn(ctx context.Context, sessionID string, turn *models.ChatTurn) error {
	turn.SessionID = sessionID
	return s.db.AppendTurn(ctx, turn)
}

// List returns ownerID's sessions, most recent first.
func (s *SessionService) List(ctx context.Context, ownerID string) ([]models.ChatSession, error) {
	sessions, err := s.db.ListSessionsByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	return sessions, nil
}

// Turns returns a session's turns oldest first. Sessions owned by someone
// else are reported as not found.
func (s *SessionService) Turns(ctx context.Context, who models.Identity, sessionID string) ([]models.ChatTurn, error) {
	session, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != who.UserID {
		return nil, core.ErrNotFound
	}
	turns, err := s.db.ListTurnsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	return turns, nil
}

// Owns reports whether sessionID exists and belongs to who.
func (s *SessionService) Owns(ctx context.Context, who models.Identity, sessionID string) bool {
	session, err := s.db.GetSession(ctx, sessionID)
	return err == nil && session.UserID == who.UserID
}

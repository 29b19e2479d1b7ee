package db

import (
	"context"
	"errors"

	"github.com/markdave123-py/railchat/internal/models"
)

func (c *DatabaseClient) CreateSession(ctx context.Context, s *models.ChatSession) error {
	if s == nil {
		return errors.New("nil session")
	}
	const q = `
		INSERT INTO chat_sessions (id, user_id, title, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := c.db.ExecContext(ctx, q, s.ID, s.UserID, s.Title, s.Status, s.CreatedAt)
	return classify(err)
}

func (c *DatabaseClient) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	const q = `SELECT id, user_id, title, status, created_at FROM chat_sessions WHERE id = $1`
	var s models.ChatSession
	if err := c.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.UserID, &s.Title, &s.Status, &s.CreatedAt); err != nil {
		return nil, classify(err)
	}
	return &s, nil
}

// ListSessionsByUser returns the user's sessions, most recent first.
func (c *DatabaseClient) ListSessionsByUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	const q = `
		SELECT id, user_id, title, status, created_at
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		var s models.ChatSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Status, &s.CreatedAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, s)
	}
	return out, classify(rows.Err())
}

func (c *DatabaseClient) AppendTurn(ctx context.Context, t *models.ChatTurn) error {
	if t == nil {
		return errors.New("nil turn")
	}
	const q = `
		INSERT INTO chat_turns (id, session_id, query_text, answer_text, source_label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := c.db.ExecContext(ctx, q, t.ID, t.SessionID, t.QueryText, t.AnswerText, t.SourceLabel, t.CreatedAt)
	return classify(err)
}

// ListTurnsBySession returns turns oldest first.
func (c *DatabaseClient) ListTurnsBySession(ctx context.Context, sessionID string) ([]models.ChatTurn, error) {
	const q = `
		SELECT id, session_id, query_text, answer_text, source_label, created_at
		FROM chat_turns
		WHERE session_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := c.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.QueryText, &t.AnswerText, &t.SourceLabel, &t.CreatedAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, t)
	}
	return out, classify(rows.Err())
}

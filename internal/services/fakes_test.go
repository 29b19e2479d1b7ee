package services

import (
	"context"
	"sort"
	"sync"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/railchat/internal/models"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*models.User{}} }

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return core.ErrAlreadyExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateUserRole(_ context.Context, id string, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.Role = role
	return nil
}

type memSessions struct {
	mu         sync.Mutex
	sessions   map[string]models.ChatSession
	turns      map[string][]models.ChatTurn
	failCreate error
	failAppend error
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]models.ChatSession{}, turns: map[string][]models.ChatTurn{}}
}

func (m *memSessions) CreateSession(_ context.Context, s *models.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memSessions) GetSession(_ context.Context, id string) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) ListSessionsByUser(_ context.Context, userID string) ([]models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memSessions) AppendTurn(_ context.Context, t *models.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	if _, ok := m.sessions[t.SessionID]; !ok {
		return core.ErrNotFound
	}
	m.turns[t.SessionID] = append(m.turns[t.SessionID], *t)
	return nil
}

func (m *memSessions) ListTurnsBySession(_ context.Context, id string) ([]models.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChatTurn(nil), m.turns[id]...), nil
}

type fakeRetriever struct {
	result *ingestion_engine.Retrieval
	err    error
	calls  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) (*ingestion_engine.Retrieval, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeLLM struct {
	answer     string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeLLM) Generate(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem, f.lastUser = system, user
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/railchat/internal/config"
	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/railchat/internal/models"
)

// GeneralKnowledgeLabel is the provenance of answers produced without
// document context.
const GeneralKnowledgeLabel = "General Knowledge"

type ChatMode string

const (
	ModeDocuments ChatMode = "documents"
	ModeGeneral   ChatMode = "general"
)

// ParseMode maps a request value to a mode; empty means documents.
func ParseMode(s string) (ChatMode, error) {
	switch ChatMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDocuments:
		return ModeDocuments, nil
	case ModeGeneral:
		return ModeGeneral, nil
	}
	return "", fmt.Errorf("%w: mode %q", core.ErrInvalidInput, s)
}

// SessionContext is the per-request conversation state. User is nil for
// anonymous callers; History is the ephemeral turn list and is always
// appended to on success.
type SessionContext struct {
	User      *models.Identity
	SessionID string
	History   []models.ChatTurn
}

type ChatRequest struct {
	Query  string
	Mode   ChatMode
	Policy string // overrides the configured prompt policy when set
}

// ChatResult is one answered query. Persisted is false when the turn lives
// only in the ephemeral history.
type ChatResult struct {
	Turn      models.ChatTurn
	SessionID string
	Sources   []string
	Persisted bool
}

// ChatService runs one query submission from validation to stored turn.
type ChatService struct {
	retriever       ingestion_engine.Retriever
	llm             core.LLMProvider
	sessions        *SessionService
	policy          string
	titleWords      int
	generateTimeout time.Duration
	now             func() time.Time
}

func NewChatService(retriever ingestion_engine.Retriever, llm core.LLMProvider, sessions *SessionService, cfg *config.Config) *ChatService {
	return &ChatService{
		retriever:       retriever,
		llm:             llm,
		sessions:        sessions,
		policy:          cfg.PromptPolicy,
		titleWords:      cfg.TitleWords,
		generateTimeout: cfg.GenerateTimeout,
		now:             time.Now,
	}
}

// Submit answers req within sc. Validation, retrieval and generation
// failures return an error and leave History untouched. Session persistence
// failures never fail the call.
func (c *ChatService) Submit(ctx context.Context, sc *SessionContext, req ChatRequest) (*ChatResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, core.ErrEmptyQuery
	}
	if req.Mode == "" {
		req.Mode = ModeDocuments
	}
	policy := c.policy
	if req.Policy != "" {
		if req.Policy != config.PolicyBlend && req.Policy != config.PolicyStrict {
			return nil, fmt.Errorf("%w: policy %q", core.ErrInvalidInput, req.Policy)
		}
		policy = req.Policy
	}

	if sc.User != nil && sc.SessionID == "" {
		sc.SessionID = c.sessions.Create(ctx, sc.User.UserID, Title(query, c.titleWords))
	}

	answer, sources, label, err := c.answer(ctx, req.Mode, policy, query)
	if err != nil {
		return nil, err
	}

	turn := models.ChatTurn{
		ID:          uuid.NewString(),
		SessionID:   sc.SessionID,
		QueryText:   query,
		AnswerText:  answer,
		SourceLabel: label,
		CreatedAt:   c.now().UTC(),
	}
	sc.History = append(sc.History, turn)

	res := &ChatResult{Turn: turn, SessionID: sc.SessionID, Sources: sources}
	if sc.User != nil && sc.SessionID != "" {
		if err := c.sessions.AppendTurn(ctx, sc.SessionID, &turn); err != nil {
			log.Printf("Chat: storing turn in session %s failed, kept in memory only: %v", sc.SessionID, err)
		} else {
			res.Persisted = true
		}
	}
	return res, nil
}

func (c *ChatService) answer(ctx context.Context, mode ChatMode, policy, query string) (answer string, sources []string, label string, err error) {
	var system, user string
	switch mode {
	case ModeGeneral:
		system, user, label = generalSystemPrompt, query, GeneralKnowledgeLabel
	case ModeDocuments:
		r, err := c.retriever.Retrieve(ctx, query)
		if err != nil {
			return "", nil, "", err
		}
		system, user = buildPrompt(policy, r.Context, query)
		sources, label = r.Sources, r.SourceLabel()
	default:
		return "", nil, "", fmt.Errorf("%w: mode %q", core.ErrInvalidInput, mode)
	}

	if c.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.generateTimeout)
		defer cancel()
	}
	answer, err = c.llm.Generate(ctx, system, user)
	if err != nil {
		if !errors.Is(err, core.ErrGeneration) {
			err = fmt.Errorf("%w: %w", core.ErrGeneration, err)
		}
		return "", nil, "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", nil, "", fmt.Errorf("%w: empty answer", core.ErrGeneration)
	}
	return answer, sources, label, nil
}

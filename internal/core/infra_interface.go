package core

import (
	"context"

	"github.com/markdave123-py/railchat/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) error
}

type DocumentStore interface {
	// CreateDocumentWithChunks writes the document and all of its chunks in
	// one transaction.
	CreateDocumentWithChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListIndexedChunks(ctx context.Context) ([]models.IndexedChunk, error)
	CountChunks(ctx context.Context) (int, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]models.ChatSession, error)
	AppendTurn(ctx context.Context, turn *models.ChatTurn) error
	ListTurnsBySession(ctx context.Context, sessionID string) ([]models.ChatTurn, error)
}

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/SQLite so higher layers never depend on a specific DB.
type DbClient interface {
	UserStore
	DocumentStore
	SessionStore
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// Keys are relative to the client's bucket or root directory.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	DeleteFile(ctx context.Context, key string) error
}

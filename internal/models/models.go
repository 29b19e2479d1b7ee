package models

import (
	"time"
)

// Role is the authorization level attached to a user account.
type Role string

const (
	RoleUser       Role = "User"
	RoleAdmin      Role = "Admin"
	RoleSuperadmin Role = "Superadmin"
)

// ParseRole normalises a role name. Unknown names fall back to RoleUser.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return Role(s), true
	}
	return RoleUser, false
}

// CanIngest reports whether the role may add or remove indexed documents.
func (r Role) CanIngest() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is what a verified credential or token resolves to.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// Document represents one ingested PDF or scraped page. It is never updated;
// re-ingesting the same file creates a new Document.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	SourceURL   string    `db:"source_url" json:"source_url,omitempty"`
	StorageURL  string    `db:"storage_url" json:"storage_url"`
	StorageKey  string    `db:"storage_key" json:"-"`
	SourceType  string    `db:"source_type" json:"source_type"` // "upload" or "url"
	ContentType string    `db:"content_type" json:"content_type"`
	Granularity string    `db:"granularity" json:"granularity"` // "chunk" or "document"
	ChunkCount  int       `db:"chunk_count" json:"chunk_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const (
	SourceTypeUpload = "upload"
	SourceTypeURL    = "url"
)

// DocumentChunk is one indexed unit of a document. Under document-level
// granularity a document has exactly one chunk holding its whole text.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"`
	Position   int       `db:"position" json:"position"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// IndexedChunk is a chunk joined with its owning document's filename, the
// shape needed to rebuild the vector index.
type IndexedChunk struct {
	DocumentChunk
	FileName string `json:"file_name"`
}

const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
)

// ChatSession represents one conversation owned by a user.
type ChatSession struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatTurn is one question/answer exchange. Turns are append-only.
type ChatTurn struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id,omitempty"`
	QueryText   string    `db:"query_text" json:"query"`
	AnswerText  string    `db:"answer_text" json:"answer"`
	SourceLabel string    `db:"source_label" json:"source"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Package sqlite is the embedded single-file backend for core.DbClient,
// used when no Postgres URL is configured.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/database/sqlite/migrations"
	"github.com/markdave123-py/railchat/internal/models"
)

type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database file at path and runs
// pending migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer keeps WAL happy and makes transactions serialise.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", core.ErrAlreadyExists, err)
	}
	if strings.Contains(err.Error(), "constraint failed") {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrPersistenceUnavailable, err)
}

// floatsToBytes packs a vector as little-endian float32s.
func floatsToBytes(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func bytesToFloats(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ==================== Users ====================

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.Email, u.PasswordHash, string(u.Role), toUnix(u.CreatedAt), toUnix(u.CreatedAt))
	return classify(err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = ?`, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                  models.User
		role               string
		created, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &role, &created, &updatedAt); err != nil {
		return nil, classify(err)
	}
	u.Role = models.Role(role)
	u.CreatedAt, u.UpdatedAt = fromUnix(created), fromUnix(updatedAt)
	return &u, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role models.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), toUnix(time.Now()), id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ==================== Documents ====================

func (s *Store) CreateDocumentWithChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk) error {
	if doc == nil {
		return errors.New("nil document")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents
			(id, user_id, file_name, source_url, storage_url, storage_key, source_type, content_type, granularity, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.FileName, doc.SourceURL, doc.StorageURL, doc.StorageKey, doc.SourceType,
		doc.ContentType, doc.Granularity, len(chunks), toUnix(doc.CreatedAt),
	); err != nil {
		return classify(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, document_id, position, text, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return classify(err)
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if _, err := stmt.ExecContext(ctx, ch.ID, doc.ID, ch.Position, ch.Text,
			floatsToBytes(ch.Embedding), toUnix(ch.CreatedAt)); err != nil {
			return classify(err)
		}
	}
	return classify(tx.Commit())
}

const documentColumns = `id, user_id, file_name, source_url, storage_url, storage_key, source_type, content_type, granularity, chunk_count, created_at`

func scanDocument(sc interface{ Scan(...any) error }) (*models.Document, error) {
	var (
		d       models.Document
		created int64
	)
	if err := sc.Scan(&d.ID, &d.UserID, &d.FileName, &d.SourceURL, &d.StorageURL, &d.StorageKey, &d.SourceType,
		&d.ContentType, &d.Granularity, &d.ChunkCount, &created); err != nil {
		return nil, err
	}
	d.CreatedAt = fromUnix(created)
	return &d, nil
}

func (s *Store) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		return nil, classify(err)
	}
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, *d)
	}
	return out, classify(rows.Err())
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) ListIndexedChunks(ctx context.Context) ([]models.IndexedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ch.id, ch.document_id, ch.position, ch.text, ch.embedding, ch.created_at, d.file_name
		FROM document_chunks ch
		JOIN documents d ON d.id = ch.document_id
		ORDER BY d.created_at ASC, d.id ASC, ch.position ASC`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.IndexedChunk
	for rows.Next() {
		var (
			ch      models.IndexedChunk
			blob    []byte
			created int64
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text, &blob, &created, &ch.FileName); err != nil {
			return nil, classify(err)
		}
		if ch.Embedding, err = bytesToFloats(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", ch.ID, err)
		}
		ch.CreatedAt = fromUnix(created)
		out = append(out, ch)
	}
	return out, classify(rows.Err())
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM document_chunks`).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// ==================== Sessions ====================

func (s *Store) CreateSession(ctx context.Context, cs *models.ChatSession) error {
	if cs == nil {
		return errors.New("nil session")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		cs.ID, cs.UserID, cs.Title, cs.Status, toUnix(cs.CreatedAt))
	return classify(err)
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	var (
		cs      models.ChatSession
		created int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, title, status, created_at FROM chat_sessions WHERE id = ?`, id).
		Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.Status, &created)
	if err != nil {
		return nil, classify(err)
	}
	cs.CreatedAt = fromUnix(created)
	return &cs, nil
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]models.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, status, created_at
		FROM chat_sessions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		var (
			cs      models.ChatSession
			created int64
		)
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.Status, &created); err != nil {
			return nil, classify(err)
		}
		cs.CreatedAt = fromUnix(created)
		out = append(out, cs)
	}
	return out, classify(rows.Err())
}

func (s *Store) AppendTurn(ctx context.Context, t *models.ChatTurn) error {
	if t == nil {
		return errors.New("nil turn")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, session_id, query_text, answer_text, source_label, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.QueryText, t.AnswerText, t.SourceLabel, toUnix(t.CreatedAt))
	return classify(err)
}

func (s *Store) ListTurnsBySession(ctx context.Context, sessionID string) ([]models.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, query_text, answer_text, source_label, created_at
		FROM chat_turns WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.ChatTurn
	for rows.Next() {
		var (
			t       models.ChatTurn
			created int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.QueryText, &t.AnswerText, &t.SourceLabel, &created); err != nil {
			return nil, classify(err)
		}
		t.CreatedAt = fromUnix(created)
		out = append(out, t)
	}
	return out, classify(rows.Err())
}

var _ core.DbClient = (*Store)(nil)

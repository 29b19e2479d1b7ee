package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/railchat/internal/config"
	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		if _, err := os.Stat(cfg.SslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", cfg.SslCertPath, err)
		}
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping db: %w", core.ErrPersistenceUnavailable, err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// classify maps driver errors onto the core taxonomy. Statement errors
// reported by the server pass through; everything else means the database
// could not be reached.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", core.ErrAlreadyExists, pgErr.ConstraintName)
		}
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrPersistenceUnavailable, err)
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt)
	return classify(err)
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = $1
	`
	return c.scanUser(c.db.QueryRowContext(ctx, q, email))
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE id = $1
	`
	return c.scanUser(c.db.QueryRowContext(ctx, q, id))
}

func (c *DatabaseClient) scanUser(row *sql.Row) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (c *DatabaseClient) UpdateUserRole(ctx context.Context, id string, role models.Role) error {
	res, err := c.db.ExecContext(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, string(role))
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// Documents

// CreateDocumentWithChunks inserts the document row and its chunks in a
// single transaction.
func (c *DatabaseClient) CreateDocumentWithChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk) error {
	if doc == nil {
		return errors.New("nil document")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return classify(err)
	}

	const qDoc = `
		INSERT INTO documents
			(id, user_id, file_name, source_url, storage_url, storage_key, source_type, content_type, granularity, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, qDoc,
		doc.ID, doc.UserID, doc.FileName, doc.SourceURL, doc.StorageURL, doc.StorageKey, doc.SourceType,
		doc.ContentType, doc.Granularity, len(chunks), doc.CreatedAt,
	); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}

	const qChunk = `
		INSERT INTO document_chunks (id, document_id, position, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	stmt, err := tx.PrepareContext(ctx, qChunk)
	if err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if _, err := stmt.ExecContext(ctx,
			ch.ID, doc.ID, ch.Position, ch.Text, pgvector.NewVector(ch.Embedding), ch.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return classify(err)
		}
	}
	return classify(tx.Commit())
}

const documentColumns = `id, user_id, file_name, source_url, storage_url, storage_key, source_type, content_type, granularity, chunk_count, created_at`

func scanDocument(s interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	err := s.Scan(&d.ID, &d.UserID, &d.FileName, &d.SourceURL, &d.StorageURL, &d.StorageKey, &d.SourceType,
		&d.ContentType, &d.Granularity, &d.ChunkCount, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	d, err := scanDocument(c.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err)
	}
	return d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
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

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListIndexedChunks returns every chunk with its document's filename, in
// document creation order and then chunk position.
func (c *DatabaseClient) ListIndexedChunks(ctx context.Context) ([]models.IndexedChunk, error) {
	const q = `
		SELECT ch.id, ch.document_id, ch.position, ch.text, ch.embedding, ch.created_at, d.file_name
		FROM document_chunks ch
		JOIN documents d ON d.id = ch.document_id
		ORDER BY d.created_at ASC, d.id ASC, ch.position ASC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.IndexedChunk
	for rows.Next() {
		var (
			ch  models.IndexedChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Position, &ch.Text, &emb, &ch.CreatedAt, &ch.FileName); err != nil {
			return nil, classify(err)
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, classify(rows.Err())
}

func (c *DatabaseClient) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM document_chunks`).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

var _ core.DbClient = (*DatabaseClient)(nil)

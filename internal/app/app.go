package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/markdave123-py/railchat/internal/config"
	"github.com/markdave123-py/railchat/internal/core"
	db "github.com/markdave123-py/railchat/internal/core/database"
	"github.com/markdave123-py/railchat/internal/core/database/sqlite"
	"github.com/markdave123-py/railchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/railchat/internal/core/llm"
	objectclient "github.com/markdave123-py/railchat/internal/core/object-client"
	"github.com/markdave123-py/railchat/internal/core/vectorindex"
	"github.com/markdave123-py/railchat/internal/services"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Index        *ingestion_engine.DocumentIndexService
	Users        *services.UserService
	Sessions     *services.SessionService
	Chat         *services.ChatService
	Documents    *services.DocumentService
	Server       *Server

	closers []io.Closer
}

// NewApp connects every backing service named by cfg, loads the vector
// index and builds the HTTP server. The server is not started.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbClient, err := newDatabase(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient)
	log.Printf("Database (%s) initialized and ready.", cfg.DBDriver)

	objClient, err := newObjectClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.ObjectClient = objClient
	log.Printf("Object client (%s) initialized and ready.", cfg.BlobBackend)

	embedder, err := newEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	a.track(embedder)

	generator, err := newGenerator(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the generator, %w", err)
	}
	a.track(generator)

	extractor := ingestion_engine.NewExtractorChain(
		ingestion_engine.NewURLExtractor(cfg.ExtractTimeout, cfg.MaxPageBytes),
		cfg.ExtractTimeout,
		ingestion_engine.NewUnipdfExtractor(cfg.UnidocLicenseKey),
		ingestion_engine.NewDocconvExtractor(false),
	)
	if !extractor.CanExtract("application/pdf") {
		log.Println("WARN: no PDF extractor available; install pdftotext or set UNIDOC_LICENSE_KEY to ingest PDFs.")
	}

	snapshots, err := newSnapshotStore(cfg, objClient)
	if err != nil {
		return nil, err
	}

	a.Index = ingestion_engine.NewDocumentIndexService(
		dbClient, objClient, embedder, extractor, snapshots, ingestion_engine.NewIngestConfig(cfg),
	)
	if err := a.Index.Load(appCtx); err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	log.Printf("Vector index ready with %d chunks.", a.Index.Len())

	a.Users = services.NewUserService(dbClient, cfg.JWTSecret)
	a.Sessions = services.NewSessionService(dbClient)
	a.Chat = services.NewChatService(a.Index, generator, a.Sessions, cfg)
	a.Documents = services.NewDocumentService(dbClient, objClient, a.Index)
	a.Server = NewServer(cfg, a.Users, a.Documents, a.Chat, a.Sessions)

	ok = true
	return a, nil
}

func (a *App) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("App: close: %v", err)
		}
	}
	a.closers = nil
}

func newDatabase(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	switch cfg.DBDriver {
	case "postgres":
		return db.NewDatabaseClient(ctx, cfg)
	case "sqlite":
		st, err := sqlite.NewStore(cfg.SqlitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("SQLite store at %s", st.Path())
		return st, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
}

func newObjectClient(ctx context.Context, cfg *config.Config) (core.ObjectClient, error) {
	switch cfg.BlobBackend {
	case "s3":
		return objectclient.NewS3Client(ctx, cfg)
	case "local", "":
		return objectclient.NewLocalClient(cfg.BlobDir)
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
}

func newSnapshotStore(cfg *config.Config, obj core.ObjectClient) (vectorindex.SnapshotStore, error) {
	switch cfg.SnapshotBackend {
	case "file", "":
		return vectorindex.NewFileSnapshotStore(cfg.SnapshotPath), nil
	case "blob":
		return vectorindex.NewBlobSnapshotStore(obj, cfg.SnapshotKey), nil
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
}

func newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "ollama":
		return llm.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedTimeout), nil
	case "gemini":
		if cfg.AIAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini embedder")
		}
		return llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
}

func newGenerator(ctx context.Context, cfg *config.Config) (core.LLMProvider, error) {
	switch cfg.GenProvider {
	case "ollama":
		return llm.NewOllamaLLM(cfg.OllamaURL, cfg.OllamaGenModel, cfg.GenerateTimeout), nil
	case "gemini":
		if cfg.AIAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini generator")
		}
		return llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel)
	}
	return nil, fmt.Errorf("unknown generation provider %q", cfg.GenProvider)
}

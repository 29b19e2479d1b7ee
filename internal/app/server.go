package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/railchat/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/railchat/internal/api/middlewares"
	"github.com/markdave123-py/railchat/internal/config"
)

// Accounts issues and verifies credentials for the HTTP layer.
type Accounts interface {
	handlers.Authenticator
	appMiddleware.TokenParser
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, users Accounts, docs handlers.DocumentManager, chat handlers.Chatter, sessions handlers.SessionReader) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, users, docs, chat, sessions),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func newRouter(cfg *config.Config, users Accounts, docs handlers.DocumentManager, chat handlers.Chatter, sessions handlers.SessionReader) http.Handler {
	authHandler := handlers.NewAuthHandler(users)
	docHandler := handlers.NewDocumentHandler(docs)
	chatHandler := handlers.NewChatHandler(chat, sessions)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// ingestion embeds whole batches synchronously
	r.Use(middleware.Timeout(cfg.EmbedTimeout + cfg.ExtractTimeout + 60*time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Serve the web UI when it is shipped alongside the binary
	if st, err := os.Stat("./web"); err == nil && st.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir("./web")))
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// anonymous callers may chat; their turns are not persisted
		api.With(appMiddleware.OptionalJWT(users)).Post("/chat/query", chatHandler.QueryDocument)

		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(users))
			protected.Get("/documents", docHandler.GetDocuments)
			protected.Get("/documents/{id}/file", docHandler.DownloadDocument)
			protected.Get("/chat/sessions", chatHandler.ListSessions)
			protected.Get("/chat/sessions/{id}", chatHandler.SessionTurns)

			protected.Group(func(admin chi.Router) {
				admin.Use(appMiddleware.RequireIngest)
				admin.Post("/documents/upload", docHandler.UploadDocuments)
				admin.Post("/documents/urls", docHandler.IngestURLs)
				admin.Delete("/documents/{id}", docHandler.DeleteDocument)
			})
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

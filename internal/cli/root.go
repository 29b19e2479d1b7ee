package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/core/ingestion_engine"
	"github.com/markdave123-py/railchat/internal/models"
	"github.com/markdave123-py/railchat/internal/services"
)

// UserAdmin manages accounts from the operator console.
type UserAdmin interface {
	Create(ctx context.Context, firstName, email, password string, role models.Role) (*models.User, error)
	SetRole(ctx context.Context, email string, role models.Role) (*models.User, error)
}

// DocumentIngester adds sources to the index.
type DocumentIngester interface {
	Ingest(ctx context.Context, who models.Identity, items []core.Source) ([]ingestion_engine.IngestResult, error)
}

// IndexRebuilder repopulates the vector index from the database.
type IndexRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// Asker answers a single query without a session.
type Asker interface {
	Submit(ctx context.Context, sc *services.SessionContext, req services.ChatRequest) (*services.ChatResult, error)
}

// Services is everything the commands call into.
type Services struct {
	Users    UserAdmin
	Docs     DocumentIngester
	Index    IndexRebuilder
	Chat     Asker
	Operator models.Identity
}

var svc *Services

// LocalOperator is the identity console ingestion is attributed to.
var LocalOperator = models.Identity{UserID: "railctl", Email: "railctl@localhost", Role: models.RoleSuperadmin}

var rootCmd = &cobra.Command{
	Use:           "railctl",
	Short:         "Operate a railchat deployment",
	Long:          `railctl manages users, ingests documents and queries the index of a railchat deployment directly, without going through the HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Configure sets the services the commands run against. A zero Operator
// falls back to LocalOperator.
func Configure(s *Services) {
	if s != nil && s.Operator.UserID == "" {
		s.Operator = LocalOperator
	}
	svc = s
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/markdave123-py/railchat/internal/app"
	"github.com/markdave123-py/railchat/internal/cli"
	"github.com/markdave123-py/railchat/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "railctl: startup failed: %v\n", err)
		os.Exit(1)
	}

	cli.Configure(&cli.Services{
		Users: application.Users,
		Docs:  application.Documents,
		Index: application.Index,
		Chat:  application.Chat,
	})

	err = cli.Execute(ctx)
	application.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "railctl: %v\n", err)
		os.Exit(1)
	}
}

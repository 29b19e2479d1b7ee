package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/services"
)

var (
	askMode   string
	askPolicy string
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Ask a question against the indexed documents",
	Long: `Answers one question. In documents mode the answer is grounded on the
closest indexed chunks and their sources are listed; general mode asks the
model directly.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", string(services.ModeDocuments), "documents or general")
	askCmd.Flags().StringVar(&askPolicy, "policy", "", "blend or strict (defaults to the configured policy)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if svc == nil || svc.Chat == nil {
		return errors.New("chat service not configured")
	}
	mode, err := services.ParseMode(askMode)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	res, err := svc.Chat.Submit(commandContext(cmd), &services.SessionContext{}, services.ChatRequest{
		Query: query, Mode: mode, Policy: askPolicy,
	})
	if err != nil {
		return errors.New(core.UserMessage("ask", query, err))
	}
	cmd.Println(res.Turn.AnswerText)
	cmd.Println()
	cmd.Printf("Source: %s\n", res.Turn.SourceLabel)
	return nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index from the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if svc == nil || svc.Index == nil {
			return errors.New("index not configured")
		}
		n, err := svc.Index.Rebuild(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		cmd.Printf("Indexed %d chunks\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

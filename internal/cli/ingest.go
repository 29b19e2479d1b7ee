package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/railchat/internal/core"
)

var ingestURLs []string

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Add documents and web pages to the index",
	Long: `Extracts, chunks and embeds each file and URL, then commits it to the
index. Items succeed or fail independently; the command fails if any item did.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestURLs, "url", "u", nil, "web page to ingest (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if svc == nil || svc.Docs == nil {
		return errors.New("document service not configured")
	}
	if len(args) == 0 && len(ingestURLs) == 0 {
		return errors.New("nothing to ingest: give files or --url")
	}

	items := make([]core.Source, 0, len(args)+len(ingestURLs))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		items = append(items, core.Source{FileName: filepath.Base(path), Data: data})
	}
	for _, u := range ingestURLs {
		items = append(items, core.Source{URL: u})
	}

	results, batchErr := svc.Docs.Ingest(commandContext(cmd), svc.Operator, items)
	if results == nil && batchErr != nil {
		return fmt.Errorf("ingest: %w", batchErr)
	}

	failed := 0
	for _, r := range results {
		if r.OK() {
			cmd.Printf("  ok     %s  %d chunks  (%s)\n", r.Source, r.Chunks, r.DocumentID)
			continue
		}
		failed++
		cmd.Printf("  failed %s: %s\n", r.Source, core.UserMessage("ingest", r.Source, r.Err))
	}
	if batchErr != nil {
		cmd.Printf("warning: %v\n", batchErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, len(results))
	}
	return nil
}

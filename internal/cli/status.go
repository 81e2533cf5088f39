package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <project>",
	Short: "Show crawl, index and job state for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project := args[0]

		svc, err := getService(false)
		if err != nil {
			return err
		}
		// Best effort: a project without persisted chunks simply shows
		// not_built indexes.
		_ = svc.LoadIndexes(cmd.Context(), project)

		status, err := svc.Status(cmd.Context(), project)
		if err != nil {
			exitWithError("fetch status: %v", err)
		}

		fmt.Println(headerStyle.Render("Project " + project))
		if run := status.LatestRun; run != nil {
			fmt.Printf("  Last crawl:  %s  (%d pages, %d ok, %d failed)\n",
				run.StartedAt.Format("2006-01-02 15:04"),
				run.TotalPages, run.SuccessfulPages, run.FailedPages)
		} else {
			fmt.Println(dimStyle.Render("  Never crawled"))
		}
		fmt.Printf("  BM25 index:   %s\n", status.Indexes.BM25)
		fmt.Printf("  Vector index: %s", status.Indexes.Vector)
		if status.Indexes.Shortfall > 0 {
			fmt.Printf("  (%d chunks missing embeddings)", status.Indexes.Shortfall)
		}
		fmt.Println()
		if status.Indexes.ChunkCount > 0 {
			fmt.Printf("  Chunks:       %d\n", status.Indexes.ChunkCount)
		}
		return nil
	},
}

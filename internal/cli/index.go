package cli

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <project>",
	Short: "Build the lexical and vector indexes from the latest crawl",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project := args[0]

		svc, err := getService(true)
		if err != nil {
			return err
		}

		job, err := svc.BuildIndexes(cmd.Context(), project)
		if err != nil {
			exitWithError("build indexes: %v", err)
		}

		return runJobProgress(svc.Jobs(), job.ID, "chunks")
	},
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/optiview/optiview/internal/models"
)

var planPhrase bool

var planCmd = &cobra.Command{
	Use:   "plan <project> <scan-id>",
	Short: "Generate a prioritized action plan from a completed scan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, scanID := args[0], args[1]

		svc, err := getService(planPhrase)
		if err != nil {
			return err
		}

		p, err := svc.GenerateActionPlan(cmd.Context(), project, scanID)
		if err != nil {
			exitWithError("generate plan: %v", err)
		}

		printPlan(p)
		return nil
	},
}

func printPlan(p *models.ActionPlan) {
	fmt.Println()
	fmt.Println(headerStyle.Render(fmt.Sprintf("Action plan for scan %s", p.ScanID)))
	for _, phase := range p.Phases {
		fmt.Println()
		fmt.Println(headerStyle.Render(phase.Name))
		for _, item := range phase.Items {
			check := " "
			if item.Completed {
				check = "x"
			}
			fmt.Printf("  [%s] %s  (%s priority, %s effort, %d queries)\n",
				check, item.ID, item.Priority, item.Effort, item.QueryCount)
			fmt.Println(dimStyle.Render("      " + item.Description))
		}
	}
}

func init() {
	planCmd.Flags().BoolVar(&planPhrase, "phrase", false, "rephrase action descriptions via LLM")
}

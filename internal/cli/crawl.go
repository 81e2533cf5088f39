package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/optiview/optiview/internal/service"
)

var (
	crawlMaxPages int
	crawlMaxDepth int
	crawlDelay    time.Duration
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <project> <seed-url>",
	Short: "Crawl a website breadth-first from a seed URL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, seedURL := args[0], args[1]

		svc, err := getService(false)
		if err != nil {
			return err
		}

		job, err := svc.StartCrawl(cmd.Context(), project, service.CrawlRequest{
			SeedURL:  seedURL,
			MaxPages: crawlMaxPages,
			MaxDepth: crawlMaxDepth,
			Delay:    crawlDelay,
		})
		if err != nil {
			exitWithError("start crawl: %v", err)
		}

		return runJobProgress(svc.Jobs(), job.ID, "pages")
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "page cap (default from config)")
	crawlCmd.Flags().IntVar(&crawlMaxDepth, "max-depth", 0, "link depth cap (default from config)")
	crawlCmd.Flags().DurationVar(&crawlDelay, "delay", 0, "minimum gap between fetches (default from config)")
}

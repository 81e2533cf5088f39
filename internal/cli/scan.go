package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/optiview/optiview/internal/models"
)

var (
	scanQueries    []string
	scanQueryFile  string
	scanGenerated  bool
	scanQueryCount int
	scanLexical    bool
	scanMaxResults int
)

var scanCmd = &cobra.Command{
	Use:   "scan <project>",
	Short: "Run a visibility scan against the built indexes",
	Long: `Runs a battery of synthetic queries against both indexes and reports
coverage metrics. Queries come from --query/--query-file, or are generated
from the site's content with --generated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project := args[0]

		scanCfg := models.ScanConfig{
			UseHybridSearch: !scanLexical,
			MaxResults:      scanMaxResults,
		}
		switch {
		case scanGenerated:
			scanCfg.QuerySource = models.QuerySourceGenerated
			scanCfg.QueryCount = scanQueryCount
		default:
			queries := scanQueries
			if scanQueryFile != "" {
				fromFile, err := readQueryFile(scanQueryFile)
				if err != nil {
					return err
				}
				queries = append(queries, fromFile...)
			}
			if len(queries) == 0 {
				return fmt.Errorf("no queries: pass --query, --query-file or --generated")
			}
			scanCfg.QuerySource = models.QuerySourceProvided
			scanCfg.Queries = queries
		}

		// Query embedding always needs the LLM stack, not just generation.
		svc, err := getService(true)
		if err != nil {
			return err
		}
		if err := svc.LoadIndexes(cmd.Context(), project); err != nil {
			exitWithError("load indexes (run 'optiview index %s' first): %v", project, err)
		}

		job, err := svc.ExecuteScan(cmd.Context(), project, scanCfg)
		if err != nil {
			exitWithError("execute scan: %v", err)
		}

		if err := runJobProgress(svc.Jobs(), job.ID, "queries"); err != nil {
			return err
		}

		result, err := svc.GetScan(cmd.Context(), project, job.ScanID)
		if err != nil {
			exitWithError("fetch scan results: %v", err)
		}
		printScanSummary(result)
		return nil
	},
}

func readQueryFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query file: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, scanner.Err()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
)

func printScanSummary(s *models.Scan) {
	cov := s.Coverage
	fmt.Println()
	fmt.Println(headerStyle.Render(fmt.Sprintf("Scan %s — %s", s.ScanID, s.Status)))
	fmt.Printf("  Hybrid coverage:  %.0f%%\n", cov.HybridCoverage*100)
	fmt.Printf("  BM25 coverage:    %.0f%%   avg MRR %.3f\n", cov.BM25Coverage*100, cov.AvgBM25MRR)
	fmt.Printf("  Vector coverage:  %.0f%%   avg MRR %.3f\n", cov.VectorCoverage*100, cov.AvgVectorMRR)
	fmt.Printf("  Avg overlap:      %.3f\n", cov.AvgOverlap)
	fmt.Printf("  Queries:          %d evaluated, %d errors\n", cov.EvaluatedQueries, cov.ErrorCount)

	var missed []string
	for _, qr := range s.QueryResults {
		if qr.Error == "" && !qr.Covered {
			missed = append(missed, qr.Query)
		}
	}
	if len(missed) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("Not covered:"))
		for _, q := range missed {
			fmt.Println(dimStyle.Render("  • " + q))
		}
	}
}

func init() {
	scanCmd.Flags().StringArrayVar(&scanQueries, "query", nil, "query to run (repeatable)")
	scanCmd.Flags().StringVar(&scanQueryFile, "query-file", "", "file with one query per line")
	scanCmd.Flags().BoolVar(&scanGenerated, "generated", false, "generate queries from site content via LLM")
	scanCmd.Flags().IntVar(&scanQueryCount, "count", 10, "generated query count")
	scanCmd.Flags().BoolVar(&scanLexical, "lexical-only", false, "query only the BM25 index")
	scanCmd.Flags().IntVar(&scanMaxResults, "max-results", 0, "top-K cutoff per index (default from config)")
}

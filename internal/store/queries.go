package store

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/optiview/optiview/internal/models"
)

// first unwraps the single-statement query result shape the SDK returns.
func first[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// CreateCrawlRun persists a new crawl run and returns it with its record ID.
func (s *Store) CreateCrawlRun(ctx context.Context, run *models.CrawlRun) (*models.CrawlRun, error) {
	results, err := surrealdb.Query[[]models.CrawlRun](ctx, s.db, `
		CREATE crawl_run CONTENT $run
	`, map[string]any{"run": run})
	if err != nil {
		return nil, fmt.Errorf("create crawl run: %w", wrapQueryError(err))
	}
	rows := first(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("create crawl run: empty result")
	}
	return &rows[0], nil
}

// CompleteCrawlRun writes the run's terminal state.
func (s *Store) CompleteCrawlRun(ctx context.Context, run *models.CrawlRun) error {
	if run.ID == nil {
		return fmt.Errorf("complete crawl run: missing record id")
	}
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPDATE $id SET
			completed_at = $completed_at,
			total_pages = $total,
			successful_pages = $succeeded,
			failed_pages = $failed,
			is_active = false,
			current_url = NONE,
			queue_size = 0,
			error = $error
	`, map[string]any{
		"id":           run.ID,
		"completed_at": run.CompletedAt,
		"total":        run.TotalPages,
		"succeeded":    run.SuccessfulPages,
		"failed":       run.FailedPages,
		"error":        run.Error,
	})
	if err != nil {
		return fmt.Errorf("complete crawl run: %w", wrapQueryError(err))
	}
	return nil
}

// CreatePages persists a batch of crawled pages attached to their run.
func (s *Store) CreatePages(ctx context.Context, run *models.CrawlRun, pages []models.CrawledPage) error {
	if len(pages) == 0 {
		return nil
	}
	if run.ID == nil {
		return fmt.Errorf("create pages: missing run record id")
	}
	for i := range pages {
		pages[i].Run = run.ID
	}
	_, err := surrealdb.Query[any](ctx, s.db, `
		INSERT INTO page $pages
	`, map[string]any{"pages": pages})
	if err != nil {
		return fmt.Errorf("create pages: %w", wrapQueryError(err))
	}
	return nil
}

// GetLatestRun returns the most recently started crawl run for a project,
// or ErrNotFound when the project has never been crawled.
func (s *Store) GetLatestRun(ctx context.Context, project string) (*models.CrawlRun, error) {
	results, err := surrealdb.Query[[]models.CrawlRun](ctx, s.db, `
		SELECT * FROM crawl_run WHERE project = $project
		ORDER BY started_at DESC LIMIT 1
	`, map[string]any{"project": project})
	if err != nil {
		return nil, fmt.Errorf("get latest run: %w", wrapQueryError(err))
	}
	rows := first(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// GetPages returns all pages of one crawl run ordered by crawl order.
func (s *Store) GetPages(ctx context.Context, run *models.CrawlRun) ([]models.CrawledPage, error) {
	if run.ID == nil {
		return nil, fmt.Errorf("get pages: missing run record id")
	}
	results, err := surrealdb.Query[[]models.CrawledPage](ctx, s.db, `
		SELECT * FROM page WHERE run = $run ORDER BY crawled_at ASC
	`, map[string]any{"run": run.ID})
	if err != nil {
		return nil, fmt.Errorf("get pages: %w", wrapQueryError(err))
	}
	return first(results), nil
}

// ReplaceChunks swaps a project's chunk set atomically in one transaction:
// the old set is superseded by the new index generation.
func (s *Store) ReplaceChunks(ctx context.Context, project string, chunks []models.Chunk) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		BEGIN TRANSACTION;
		DELETE chunk WHERE project = $project;
		INSERT INTO chunk $chunks;
		COMMIT TRANSACTION;
	`, map[string]any{"project": project, "chunks": chunks})
	if err != nil {
		return fmt.Errorf("replace chunks: %w", wrapQueryError(err))
	}
	return nil
}

// GetChunks returns a project's chunk set ordered by page and position.
func (s *Store) GetChunks(ctx context.Context, project string) ([]models.Chunk, error) {
	results, err := surrealdb.Query[[]models.Chunk](ctx, s.db, `
		SELECT * FROM chunk WHERE project = $project
		ORDER BY page_url ASC, position ASC
	`, map[string]any{"project": project})
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", wrapQueryError(err))
	}
	return first(results), nil
}

// CreateScan persists a new scan record.
func (s *Store) CreateScan(ctx context.Context, scan *models.Scan) (*models.Scan, error) {
	results, err := surrealdb.Query[[]models.Scan](ctx, s.db, `
		CREATE scan CONTENT $scan
	`, map[string]any{"scan": scan})
	if err != nil {
		return nil, fmt.Errorf("create scan: %w", wrapQueryError(err))
	}
	rows := first(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("create scan: empty result")
	}
	return &rows[0], nil
}

// UpdateScanStatus writes just the scan's status.
func (s *Store) UpdateScanStatus(ctx context.Context, scanID string, status models.ScanStatus) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPDATE scan SET status = $status WHERE scan_id = $scan_id
	`, map[string]any{"scan_id": scanID, "status": status})
	if err != nil {
		return fmt.Errorf("update scan status: %w", wrapQueryError(err))
	}
	return nil
}

// CompleteScan writes a scan's terminal state, results and coverage.
func (s *Store) CompleteScan(ctx context.Context, scan *models.Scan) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPDATE scan SET
			status = $status,
			coverage_metrics = $coverage,
			query_results = $results,
			completed_at = $completed_at,
			error = $error
		WHERE scan_id = $scan_id
	`, map[string]any{
		"scan_id":      scan.ScanID,
		"status":       scan.Status,
		"coverage":     scan.Coverage,
		"results":      scan.QueryResults,
		"completed_at": scan.CompletedAt,
		"error":        scan.Error,
	})
	if err != nil {
		return fmt.Errorf("complete scan: %w", wrapQueryError(err))
	}
	return nil
}

// GetScan retrieves one scan by its public scan ID.
func (s *Store) GetScan(ctx context.Context, project, scanID string) (*models.Scan, error) {
	results, err := surrealdb.Query[[]models.Scan](ctx, s.db, `
		SELECT * FROM scan WHERE project = $project AND scan_id = $scan_id
	`, map[string]any{"project": project, "scan_id": scanID})
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", wrapQueryError(err))
	}
	rows := first(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListScans returns a project's scans newest first, without query results.
func (s *Store) ListScans(ctx context.Context, project string, limit int) ([]models.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	results, err := surrealdb.Query[[]models.Scan](ctx, s.db, `
		SELECT *, NONE AS query_results FROM scan WHERE project = $project
		ORDER BY started_at DESC LIMIT $limit
	`, map[string]any{"project": project, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", wrapQueryError(err))
	}
	return first(results), nil
}

// UpsertActionPlan creates or replaces the plan derived from one scan.
func (s *Store) UpsertActionPlan(ctx context.Context, p *models.ActionPlan) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		BEGIN TRANSACTION;
		DELETE action_plan WHERE scan_id = $scan_id;
		CREATE action_plan CONTENT $plan;
		COMMIT TRANSACTION;
	`, map[string]any{"scan_id": p.ScanID, "plan": p})
	if err != nil {
		return fmt.Errorf("upsert action plan: %w", wrapQueryError(err))
	}
	return nil
}

// GetActionPlan retrieves the plan for one scan, or ErrNotFound.
func (s *Store) GetActionPlan(ctx context.Context, project, scanID string) (*models.ActionPlan, error) {
	results, err := surrealdb.Query[[]models.ActionPlan](ctx, s.db, `
		SELECT * FROM action_plan WHERE project = $project AND scan_id = $scan_id
	`, map[string]any{"project": project, "scan_id": scanID})
	if err != nil {
		return nil, fmt.Errorf("get action plan: %w", wrapQueryError(err))
	}
	rows := first(results)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// UpdateActionItem persists a plan after an item completion toggle.
func (s *Store) UpdateActionItem(ctx context.Context, p *models.ActionPlan) error {
	_, err := surrealdb.Query[any](ctx, s.db, `
		UPDATE action_plan SET phases = $phases WHERE scan_id = $scan_id
	`, map[string]any{"scan_id": p.ScanID, "phases": p.Phases})
	if err != nil {
		return fmt.Errorf("update action item: %w", wrapQueryError(err))
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/index"
	"github.com/optiview/optiview/internal/models"
	"github.com/optiview/optiview/internal/queries"
	"github.com/optiview/optiview/internal/scan"
	"github.com/optiview/optiview/internal/store"
)

// defaultQueryCount is the generated battery size when the request leaves
// it unset.
const defaultQueryCount = 10

// ExecuteScan validates the config, pins the current index generation and
// launches the scan in the background. The returned job carries the public
// scan ID.
func (s *Service) ExecuteScan(ctx context.Context, project string, cfg models.ScanConfig) (*Job, error) {
	if err := validateScanConfig(&cfg, s.cfg.ScanMaxResults, s.cfg.ScanConcurrency); err != nil {
		return nil, err
	}
	if cfg.QuerySource == models.QuerySourceGenerated && s.model == nil {
		return nil, errors.New("query generation requires an LLM model")
	}

	// Pin the generation before anything async so a rebuild cannot start
	// mid-scan.
	gen, release, err := s.manager(project).Acquire()
	if err != nil {
		return nil, err
	}

	battery, err := s.buildQueries(ctx, project, cfg)
	if err != nil {
		release()
		return nil, err
	}

	scanRecord := &models.Scan{
		ScanID:    uuid.New().String()[:8],
		Project:   project,
		Status:    models.ScanStatusPending,
		Config:    cfg,
		StartedAt: time.Now(),
	}
	stored, err := s.store.CreateScan(ctx, scanRecord)
	if err != nil {
		release()
		return nil, err
	}

	job := s.jobs.Create(project, JobTypeScan)
	job.ScanID = stored.ScanID
	go s.runScan(job, stored, gen, release, battery)
	return job, nil
}

func (s *Service) runScan(job *Job, scanRecord *models.Scan, gen *index.Generation, release func(), battery []models.SyntheticQuery) {
	defer release()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scan goroutine panicked", "job_id", job.ID, "panic", r)
			job.Fail(fmt.Errorf("internal panic: %v", r))
		}
	}()

	ctx := context.Background()
	job.SetRunning()
	scanRecord.Status = models.ScanStatusRunning
	if err := s.store.UpdateScanStatus(ctx, scanRecord.ScanID, models.ScanStatusRunning); err != nil {
		slog.Warn("failed to mark scan running", "scan_id", scanRecord.ScanID, "error", err)
	}

	judge := s.judgeFor(scanRecord.Config)
	runErr := s.runner.Run(ctx, scanRecord, gen, battery, judge)

	now := time.Now()
	scanRecord.CompletedAt = &now
	if runErr != nil {
		scanRecord.Status = models.ScanStatusFailed
		scanRecord.Error = runErr.Error()
	} else {
		scanRecord.Status = models.ScanStatusCompleted
	}

	if err := s.store.CompleteScan(ctx, scanRecord); err != nil {
		slog.Error("failed to persist scan results", "scan_id", scanRecord.ScanID, "error", err)
		job.Fail(fmt.Errorf("persist scan: %w", err))
		return
	}

	if runErr != nil {
		job.Fail(runErr)
		s.sink.Completed(events.Completion{
			Project: scanRecord.Project, Kind: "scan", ID: scanRecord.ScanID,
			Err: runErr.Error(), At: time.Now(),
		})
		return
	}

	job.UpdateProgress(len(battery), len(battery))
	job.Complete()
	s.sink.Completed(events.Completion{
		Project: scanRecord.Project, Kind: "scan", ID: scanRecord.ScanID, At: time.Now(),
	})
}

// judgeFor picks the relevance policy for one scan. A scan uses either the
// deterministic term-overlap judgment or the LLM judge, never a mix.
func (s *Service) judgeFor(cfg models.ScanConfig) scan.Judge {
	if s.model != nil && cfg.QuerySource == models.QuerySourceGenerated {
		return scan.LLMJudge{Model: s.model}
	}
	return scan.TermOverlapJudge{}
}

func (s *Service) buildQueries(ctx context.Context, project string, cfg models.ScanConfig) ([]models.SyntheticQuery, error) {
	if cfg.QuerySource == models.QuerySourceProvided {
		return s.generator.Provided(cfg.Queries, cfg.ExpectedPages)
	}

	run, err := s.store.GetLatestRun(ctx, project)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrNoPages
		}
		return nil, err
	}
	pages, err := s.store.GetPages(ctx, run)
	if err != nil {
		return nil, err
	}
	profile := queries.BuildProfile(run.SeedURL, pages)
	return s.generator.Generated(ctx, profile, cfg.QueryCount)
}

func validateScanConfig(cfg *models.ScanConfig, defaultMaxResults, defaultConcurrency int) error {
	switch cfg.QuerySource {
	case models.QuerySourceProvided:
		if len(cfg.Queries) == 0 {
			return errors.New("provided query source requires queries")
		}
	case models.QuerySourceGenerated:
		if cfg.QueryCount <= 0 {
			cfg.QueryCount = defaultQueryCount
		}
	default:
		return fmt.Errorf("unknown query source %q", cfg.QuerySource)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return nil
}

// GetScan retrieves one scan with its full query results.
func (s *Service) GetScan(ctx context.Context, project, scanID string) (*models.Scan, error) {
	return s.store.GetScan(ctx, project, scanID)
}

// ListScans returns a project's scan history, newest first.
func (s *Service) ListScans(ctx context.Context, project string, limit int) ([]models.Scan, error) {
	return s.store.ListScans(ctx, project, limit)
}

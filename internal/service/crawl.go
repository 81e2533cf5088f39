package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/optiview/optiview/internal/crawler"
	"github.com/optiview/optiview/internal/events"
)

// CrawlRequest configures one crawl. Zero fields fall back to the
// service's configured defaults.
type CrawlRequest struct {
	SeedURL  string
	MaxPages int
	MaxDepth int
	Delay    time.Duration
}

func (s *Service) crawlConfig(req CrawlRequest) crawler.Config {
	cfg := crawler.Config{
		MaxPages:      s.cfg.CrawlMaxPages,
		MaxDepth:      s.cfg.CrawlMaxDepth,
		Delay:         s.cfg.CrawlDelay,
		Timeout:       s.cfg.CrawlTimeout,
		RespectRobots: s.cfg.RespectRobots,
		UserAgent:     s.cfg.CrawlUserAgent,
	}
	if req.MaxPages > 0 {
		cfg.MaxPages = req.MaxPages
	}
	if req.MaxDepth > 0 {
		cfg.MaxDepth = req.MaxDepth
	}
	if req.Delay > 0 {
		cfg.Delay = req.Delay
	}
	return cfg
}

// StartCrawl launches a background crawl for the project. Returns
// ErrCrawlActive when one is already running.
func (s *Service) StartCrawl(ctx context.Context, project string, req CrawlRequest) (*Job, error) {
	if s.jobs.Active(project, JobTypeCrawl) {
		return nil, ErrCrawlActive
	}
	cfg := s.crawlConfig(req)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.SeedURL == "" {
		return nil, fmt.Errorf("seed url is required")
	}

	job := s.jobs.Create(project, JobTypeCrawl)
	go s.runCrawl(job, project, req.SeedURL, cfg)
	return job, nil
}

func (s *Service) runCrawl(job *Job, project, seedURL string, cfg crawler.Config) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("crawl goroutine panicked", "job_id", job.ID, "panic", r)
			job.Fail(fmt.Errorf("internal panic: %v", r))
		}
	}()

	ctx := context.Background()
	job.SetRunning()

	run, pages, err := s.crawler.Crawl(ctx, project, seedURL, cfg)
	if err != nil {
		job.Fail(err)
		s.sink.Completed(events.Completion{
			Project: project, Kind: "crawl", ID: job.ID,
			Err: err.Error(), At: time.Now(),
		})
		return
	}

	stored, err := s.store.CreateCrawlRun(ctx, run)
	if err == nil {
		err = s.store.CreatePages(ctx, stored, pages)
	}
	if err == nil {
		stored.TotalPages = run.TotalPages
		stored.SuccessfulPages = run.SuccessfulPages
		stored.FailedPages = run.FailedPages
		stored.CompletedAt = run.CompletedAt
		stored.Error = run.Error
		err = s.store.CompleteCrawlRun(ctx, stored)
	}
	if err != nil {
		job.Fail(fmt.Errorf("persist crawl: %w", err))
		s.sink.Completed(events.Completion{
			Project: project, Kind: "crawl", ID: job.ID,
			Err: err.Error(), At: time.Now(),
		})
		return
	}

	job.UpdateProgress(run.TotalPages, run.TotalPages)
	job.Complete()
	s.sink.Completed(events.Completion{Project: project, Kind: "crawl", ID: job.ID, At: time.Now()})
}

// Package service orchestrates the visibility pipeline: crawl, chunk,
// index, scan and plan. It owns per-project index managers and runs the
// long operations as background jobs.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/optiview/optiview/internal/config"
	"github.com/optiview/optiview/internal/crawler"
	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/index"
	"github.com/optiview/optiview/internal/index/vector"
	"github.com/optiview/optiview/internal/metrics"
	"github.com/optiview/optiview/internal/models"
	"github.com/optiview/optiview/internal/queries"
	"github.com/optiview/optiview/internal/scan"
)

var (
	// ErrCrawlActive is returned when a crawl is requested for a project
	// that already has one running.
	ErrCrawlActive = errors.New("crawl already running for project")

	// ErrNoPages is returned when an index build finds no successfully
	// crawled pages for the project.
	ErrNoPages = errors.New("no crawled pages for project")
)

// Store is the persistence capability the service needs. *store.Store
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	CreateCrawlRun(ctx context.Context, run *models.CrawlRun) (*models.CrawlRun, error)
	CompleteCrawlRun(ctx context.Context, run *models.CrawlRun) error
	CreatePages(ctx context.Context, run *models.CrawlRun, pages []models.CrawledPage) error
	GetLatestRun(ctx context.Context, project string) (*models.CrawlRun, error)
	GetPages(ctx context.Context, run *models.CrawlRun) ([]models.CrawledPage, error)

	ReplaceChunks(ctx context.Context, project string, chunks []models.Chunk) error
	GetChunks(ctx context.Context, project string) ([]models.Chunk, error)

	CreateScan(ctx context.Context, s *models.Scan) (*models.Scan, error)
	UpdateScanStatus(ctx context.Context, scanID string, status models.ScanStatus) error
	CompleteScan(ctx context.Context, s *models.Scan) error
	GetScan(ctx context.Context, project, scanID string) (*models.Scan, error)
	ListScans(ctx context.Context, project string, limit int) ([]models.Scan, error)

	UpsertActionPlan(ctx context.Context, p *models.ActionPlan) error
	GetActionPlan(ctx context.Context, project, scanID string) (*models.ActionPlan, error)
	UpdateActionItem(ctx context.Context, p *models.ActionPlan) error
}

// Model is the optional LLM collaborator for query generation, relevance
// judgment and action phrasing.
type Model interface {
	queries.QueryModel
	scan.RelevanceModel
	PhraseAction(ctx context.Context, description string, sampleQueries []string) (string, error)
}

// Service wires the pipeline components together.
type Service struct {
	cfg       config.Config
	store     Store
	crawler   *crawler.Crawler
	embedder  vector.Embedder
	model     Model // nil when no LLM is configured
	generator *queries.Generator
	runner    *scan.Runner
	sink      events.Sink
	collector *metrics.Collector
	jobs      *JobManager

	mu       sync.Mutex
	managers map[string]*index.Manager
}

// New assembles the service. model may be nil; embedder is required for
// index builds.
func New(cfg config.Config, st Store, embedder vector.Embedder, model Model, sink events.Sink, collector *metrics.Collector) *Service {
	if sink == nil {
		sink = events.Discard{}
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Service{
		cfg:       cfg,
		store:     st,
		crawler:   crawler.New(sink, collector),
		embedder:  embedder,
		model:     model,
		generator: queries.NewGenerator(model),
		runner:    scan.NewRunner(sink, collector),
		sink:      sink,
		collector: collector,
		jobs:      NewJobManager(),
	}
}

// Jobs exposes the job manager for status surfaces.
func (s *Service) Jobs() *JobManager {
	return s.jobs
}

// Metrics returns the current runtime statistics snapshot.
func (s *Service) Metrics() metrics.Snapshot {
	return s.collector.Snapshot()
}

// manager returns the project's index manager, creating it on first use.
func (s *Service) manager(project string) *index.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managers[project]
	if !ok {
		if s.managers == nil {
			s.managers = make(map[string]*index.Manager)
		}
		m = index.NewManager(s.embedder, index.BuildConfig{
			EmbedConcurrency: s.cfg.EmbedConcurrency,
			MaxFailureRate:   s.cfg.MaxEmbedFailRate,
		})
		s.managers[project] = m
	}
	return m
}

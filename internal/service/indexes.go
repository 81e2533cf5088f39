package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/optiview/optiview/internal/chunker"
	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/models"
	"github.com/optiview/optiview/internal/store"
)

// BuildIndexes launches a background rebuild of both indexes from the
// project's latest crawl run. Fails fast when no pages exist, when a
// build is already running, or when a scan holds the current generation.
func (s *Service) BuildIndexes(ctx context.Context, project string) (*Job, error) {
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
	successful := successfulPages(pages)
	if len(successful) == 0 {
		return nil, ErrNoPages
	}

	job := s.jobs.Create(project, JobTypeIndex)
	go s.runBuild(job, project, successful)
	return job, nil
}

func (s *Service) runBuild(job *Job, project string, pages []models.CrawledPage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("index build goroutine panicked", "job_id", job.ID, "panic", r)
			job.Fail(fmt.Errorf("internal panic: %v", r))
		}
	}()

	ctx := context.Background()
	job.SetRunning()

	chunks := chunker.ChunkAll(pages, chunker.DefaultConfig())
	job.UpdateProgress(0, len(chunks))

	mgr := s.manager(project)
	if err := mgr.Build(ctx, chunks); err != nil {
		job.Fail(err)
		s.sink.Completed(events.Completion{
			Project: project, Kind: "index", ID: job.ID,
			Err: err.Error(), At: time.Now(),
		})
		return
	}

	// Persist the chunk set with its embeddings so the indexes can be
	// restored on restart without re-embedding.
	embedded := mgr.EmbeddedChunks()
	if err := s.store.ReplaceChunks(ctx, project, embedded); err != nil {
		slog.Warn("indexes built but chunk persistence failed", "project", project, "error", err)
	}

	job.UpdateProgress(len(chunks), len(chunks))
	job.Complete()
	s.sink.Completed(events.Completion{Project: project, Kind: "index", ID: job.ID, At: time.Now()})
}

// LoadIndexes restores the project's indexes from persisted chunks. Used
// at startup so a restart does not force a rebuild.
func (s *Service) LoadIndexes(ctx context.Context, project string) error {
	chunks, err := s.store.GetChunks(ctx, project)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return ErrNoPages
	}
	return s.manager(project).Restore(chunks)
}

func successfulPages(pages []models.CrawledPage) []models.CrawledPage {
	var out []models.CrawledPage
	for _, p := range pages {
		if p.Status == models.PageStatusSuccess {
			out = append(out, p)
		}
	}
	return out
}

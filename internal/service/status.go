package service

import (
	"context"

	"github.com/optiview/optiview/internal/index"
	"github.com/optiview/optiview/internal/models"
	"github.com/optiview/optiview/internal/store"
)

// ProjectStatus is the combined pipeline state surfaced on the status
// endpoints.
type ProjectStatus struct {
	Project   string             `json:"project"`
	LatestRun *models.CrawlRun   `json:"latest_run,omitempty"`
	Indexes   index.StatusReport `json:"indexes"`
	Jobs      []Job              `json:"jobs,omitempty"`
}

// Status reports the project's crawl history, index state and jobs.
func (s *Service) Status(ctx context.Context, project string) (*ProjectStatus, error) {
	status := &ProjectStatus{
		Project: project,
		Indexes: s.manager(project).Status(),
	}

	run, err := s.store.GetLatestRun(ctx, project)
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}
	status.LatestRun = run

	for _, job := range s.jobs.List(project) {
		status.Jobs = append(status.Jobs, job.Snapshot())
	}
	return status, nil
}

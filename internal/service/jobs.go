package service

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType identifies what a background job is doing.
type JobType string

const (
	JobTypeCrawl JobType = "crawl"
	JobTypeIndex JobType = "index"
	JobTypeScan  JobType = "scan"
)

// Job represents one background pipeline operation. Domain outcomes
// (runs, scans, plans) are persisted in their own tables; the job record
// itself is in-memory progress state.
type Job struct {
	ID      string    `json:"id"`
	Project string    `json:"project"`
	Type    JobType   `json:"type"`
	Status  JobStatus `json:"status"`

	Progress int `json:"progress"`
	Total    int `json:"total"`

	// ScanID links scan jobs to their persisted scan record.
	ScanID string `json:"scan_id,omitempty"`

	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// JobManager tracks background jobs.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobManager creates an empty job manager.
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// Create registers a new pending job.
func (m *JobManager) Create(project string, jobType JobType) *Job {
	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Project:   project,
		Type:      jobType,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	slog.Info("job created", "job_id", job.ID, "project", project, "type", jobType)
	return job
}

// Get retrieves a job by ID, nil when unknown.
func (m *JobManager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// List returns all jobs for a project, most recent first. An empty
// project returns every job.
func (m *JobManager) List(project string) []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if project == "" || job.Project == project {
			jobs = append(jobs, job)
		}
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return jobs
}

// Active reports whether the project has a pending or running job of the
// given type.
func (m *JobManager) Active(project string, jobType JobType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if job.Project != project || job.Type != jobType {
			continue
		}
		s := job.Snapshot()
		if s.Status == JobStatusPending || s.Status == JobStatusRunning {
			return true
		}
	}
	return false
}

// SetRunning marks the job as running.
func (j *Job) SetRunning() {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.mu.Unlock()
}

// UpdateProgress records done/total counts.
func (j *Job) UpdateProgress(done, total int) {
	j.mu.Lock()
	j.Progress = done
	j.Total = total
	if j.Status == JobStatusPending {
		j.Status = JobStatusRunning
	}
	j.mu.Unlock()
}

// Complete marks the job as finished.
func (j *Job) Complete() {
	j.mu.Lock()
	j.Status = JobStatusCompleted
	now := time.Now()
	j.CompletedAt = &now
	j.mu.Unlock()
	slog.Info("job completed", "job_id", j.ID, "type", j.Type)
}

// Fail marks the job as failed.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	j.Status = JobStatusFailed
	j.Error = err.Error()
	now := time.Now()
	j.CompletedAt = &now
	j.mu.Unlock()
	slog.Error("job failed", "job_id", j.ID, "type", j.Type, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:          j.ID,
		Project:     j.Project,
		Type:        j.Type,
		Status:      j.Status,
		Progress:    j.Progress,
		Total:       j.Total,
		ScanID:      j.ScanID,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

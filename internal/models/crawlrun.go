package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// CrawlRun aggregates the pages fetched for one project at one point in time.
// Live fields (IsActive, CurrentURL, QueueSize) are published through the
// event sink while the crawl is running; the persisted document is updated
// once at start and once at completion.
type CrawlRun struct {
	ID *surrealmodels.RecordID `json:"id,omitempty"`

	Project     string     `json:"project"`
	SeedURL     string     `json:"seed_url"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	TotalPages      int `json:"total_pages"`
	SuccessfulPages int `json:"successful_pages"`
	FailedPages     int `json:"failed_pages"`

	IsActive   bool   `json:"is_active"`
	CurrentURL string `json:"current_url,omitempty"`
	QueueSize  int    `json:"queue_size"`

	Error string `json:"error,omitempty"`
}

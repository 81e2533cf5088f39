package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Priority ranks how urgent an action item is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Effort estimates how much work an action item takes.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ActionItem is one prioritized improvement action derived from scan results.
// Only Completed is ever mutated after generation.
type ActionItem struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Effort      Effort   `json:"effort"`
	Completed   bool     `json:"completed"`

	// Pattern is the retrieval outcome pattern that produced this item.
	Pattern string `json:"pattern,omitempty"`
	// QueryCount is how many queries exhibited the pattern.
	QueryCount int `json:"query_count,omitempty"`
}

// ActionPhase groups items of one priority band into an ordered phase.
type ActionPhase struct {
	Name  string       `json:"name"`
	Items []ActionItem `json:"items"`
}

// ActionPlan is the ordered, phased improvement plan derived from one scan.
// Regenerable from the scan at any time; deterministic apart from optional
// LLM-phrased descriptions.
type ActionPlan struct {
	ID *surrealmodels.RecordID `json:"id,omitempty"`

	Project     string        `json:"project"`
	ScanID      string        `json:"scan_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Phases      []ActionPhase `json:"phases"`
}

package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ScanStatus is the lifecycle state of a visibility scan.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanConfig configures one scan. Unknown or invalid combinations are
// rejected at the boundary, before any pipeline work starts.
type ScanConfig struct {
	QuerySource QuerySource `json:"query_source"`

	// Queries are the literal query strings for QuerySourceProvided.
	Queries []string `json:"queries,omitempty"`

	// ExpectedPages maps a provided query string to its ground-truth page
	// URLs. Queries without an entry fall back to the heuristic judgment.
	ExpectedPages map[string][]string `json:"expected_pages,omitempty"`

	// QueryCount is the requested battery size for QuerySourceGenerated.
	QueryCount int `json:"query_count"`

	// UseHybridSearch runs both indexes. When false only the lexical index
	// is queried: vector result lists stay empty and overlap is 0.
	UseHybridSearch bool `json:"use_hybrid_search"`

	// MaxResults is the top-K cutoff per index per query.
	MaxResults int `json:"max_results"`

	// Concurrency bounds parallel query evaluation.
	Concurrency int `json:"concurrency,omitempty"`
}

// MRR holds the mean reciprocal rank of each index for one query:
// 1/rank of the first relevant result, 0 if none within MaxResults.
type MRR struct {
	BM25   float64 `json:"bm25"`
	Vector float64 `json:"vector"`
}

// QueryResult is the outcome of running one synthetic query against both
// indexes. A failed query carries Error and zeroed metrics.
type QueryResult struct {
	Query  string      `json:"query"`
	Intent Intent      `json:"intent"`
	Source QuerySource `json:"source"`

	BM25Results   []RankedResult `json:"bm25_results"`
	VectorResults []RankedResult `json:"vector_results"`

	MRR     MRR     `json:"mrr"`
	Overlap float64 `json:"overlap"`
	Covered bool    `json:"covered"`

	Error string `json:"error,omitempty"`
}

// CoverageMetrics aggregates per-query outcomes over a scan. Ratios are
// computed over evaluated (non-error) queries only; ErrorCount makes the
// excluded rows visible.
type CoverageMetrics struct {
	HybridCoverage float64 `json:"hybrid_coverage"`
	BM25Coverage   float64 `json:"bm25_coverage"`
	VectorCoverage float64 `json:"vector_coverage"`
	AvgOverlap     float64 `json:"avg_overlap"`
	AvgBM25MRR     float64 `json:"avg_bm25_mrr"`
	AvgVectorMRR   float64 `json:"avg_vector_mrr"`

	TotalQueries     int `json:"total_queries"`
	EvaluatedQueries int `json:"evaluated_queries"`
	ErrorCount       int `json:"error_count"`
}

// Scan aggregates the query results for one project against one index
// generation. Immutable once Status is completed.
type Scan struct {
	ID     *surrealmodels.RecordID `json:"id,omitempty"`
	ScanID string                  `json:"scan_id"`

	Project string     `json:"project"`
	Status  ScanStatus `json:"status"`
	Config  ScanConfig `json:"config"`

	Coverage     CoverageMetrics `json:"coverage_metrics"`
	QueryResults []QueryResult   `json:"query_results"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Chunk is a bounded-size slice of a page's text, the unit indexed by both
// retrieval systems. Chunks are regenerated whenever indexes are rebuilt and
// always trace back to exactly one successfully crawled page.
type Chunk struct {
	ID *surrealmodels.RecordID `json:"id,omitempty"`

	// ChunkID is the stable identifier "<pageURL>#<position>".
	ChunkID string `json:"chunk_id"`

	Project   string `json:"project"`
	PageURL   string `json:"page_url"`
	PageTitle string `json:"page_title,omitempty"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
	Position  int    `json:"position"` // ordinal within the page

	// Embedding is populated after a successful vector index build so the
	// index can be restored from the store without re-embedding.
	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RankedResult is one entry of a ranked retrieval result list. Rank is the
// 1-based position in the page-collapsed list, so results from two different
// chunks of the same page occupy a single rank.
type RankedResult struct {
	ChunkID string  `json:"chunk_id"`
	PageURL string  `json:"page_url"`
	Title   string  `json:"title,omitempty"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
}

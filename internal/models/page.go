// Package models defines data structures for the OptiView visibility scanner.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// PageStatus is the terminal outcome of fetching a single page.
type PageStatus string

const (
	PageStatusSuccess PageStatus = "success"
	PageStatusFailed  PageStatus = "failed"
)

// PageMetadata holds secondary metadata extracted from a page's head.
type PageMetadata struct {
	Keywords    []string   `json:"keywords,omitempty"`
	Author      string     `json:"author,omitempty"`
	Language    string     `json:"language,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
}

// CrawledPage is the record of one fetched URL within a crawl run.
// Pages are immutable once written; a later crawl of the same project
// supersedes them with a new run rather than mutating in place.
type CrawledPage struct {
	ID  *surrealmodels.RecordID `json:"id,omitempty"`
	Run *surrealmodels.RecordID `json:"run,omitempty"`

	Project         string     `json:"project"`
	URL             string     `json:"url"`
	Title           string     `json:"title,omitempty"`
	H1              string     `json:"h1,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	CanonicalURL    string     `json:"canonical_url,omitempty"`
	Status          PageStatus `json:"status"`
	CrawledAt       time.Time  `json:"crawled_at"`
	WordCount       int        `json:"word_count"`
	CrawlDepth      int        `json:"crawl_depth"` // 0 = seed
	ParentURL       string     `json:"parent_url,omitempty"`
	InternalLinks   []string   `json:"internal_links,omitempty"`
	OutboundLinks   []string   `json:"outbound_links,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`

	Metadata PageMetadata `json:"metadata"`

	// Content is the cleaned visible text. Held for chunking; not part of
	// the API projection of a page.
	Content string `json:"content,omitempty"`
}

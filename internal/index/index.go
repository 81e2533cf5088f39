// Package index defines the shared retrieval contracts and owns the
// atomically swapped index generation both searchers live in.
package index

import (
	"context"
	"errors"
	"time"

	"github.com/optiview/optiview/internal/models"
)

// Status is the lifecycle state of one index variant.
type Status string

const (
	StatusNotBuilt Status = "not_built"
	StatusBuilding Status = "building"
	StatusReady    Status = "ready"
	StatusError    Status = "error"
)

var (
	// ErrNotReady is returned when a search or scan is requested before
	// both indexes are ready.
	ErrNotReady = errors.New("index not ready")

	// ErrBuildInProgress is returned when a rebuild is requested while a
	// build is already running.
	ErrBuildInProgress = errors.New("index build already in progress")

	// ErrScanActive is returned when a rebuild is requested while a scan
	// holds the current generation.
	ErrScanActive = errors.New("scan running against current index generation")

	// ErrNoChunks is returned when a build is requested with no chunks.
	ErrNoChunks = errors.New("no chunks to index")
)

// Searcher is the common ranked-retrieval capability both index variants
// implement. Results are collapsed to page level: two chunks of the same
// page occupy a single rank. Search is deterministic for a fixed index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.RankedResult, error)
}

// PageInfo is the per-page context kept with a generation for relevance
// judgment and citability.
type PageInfo struct {
	Title string
	Text  string
}

// Generation is one immutable, fully built index pair over a single chunk
// set. Readers snapshot a generation once and keep using it even if a new
// one is swapped in behind them.
type Generation struct {
	BM25   Searcher
	Vector Searcher

	// Pages maps source page URL to its indexed context.
	Pages map[string]PageInfo

	ChunkCount int
	Shortfall  int // chunks excluded from the vector index by embed failures
	BuiltAt    time.Time
}

// BuildPageInfo assembles the page map for a generation from its chunk set.
func BuildPageInfo(chunks []models.Chunk) map[string]PageInfo {
	pages := make(map[string]PageInfo)
	for _, c := range chunks {
		info := pages[c.PageURL]
		if info.Title == "" {
			info.Title = c.PageTitle
		}
		if info.Text != "" {
			info.Text += " "
		}
		info.Text += c.Text
		pages[c.PageURL] = info
	}
	return pages
}

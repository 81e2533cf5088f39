// Package vector implements the dense retrieval index: chunk embeddings from
// an external provider searched by cosine similarity.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/optiview/optiview/internal/models"
)

// Embedder is the external embedding collaborator. Calls may fail or
// rate-limit per invocation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BuildOptions bounds the embedding fan-out during a build.
type BuildOptions struct {
	// Concurrency is the number of parallel embedding calls (default 4).
	Concurrency int
	// Timeout applies per embedding call (default 30s).
	Timeout time.Duration
	// MaxFailureRate is the tolerated fraction of failed chunk embeddings
	// before the whole build is escalated to an error (default 0.2).
	MaxFailureRate float64
}

func (o *BuildOptions) defaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxFailureRate <= 0 {
		o.MaxFailureRate = 0.2
	}
}

// ThresholdError reports an embed failure rate above the configured limit.
type ThresholdError struct {
	Failed int
	Total  int
	Limit  float64
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("embedding failures exceed threshold: %d/%d failed (limit %.0f%%)",
		e.Failed, e.Total, e.Limit*100)
}

type entry struct {
	chunk models.Chunk
	vec   []float32
}

// Index is an immutable dense index over a chunk set. Searches embed the
// query with the same model and rank chunks by cosine similarity.
type Index struct {
	embedder  Embedder
	entries   []entry
	dim       int
	shortfall int
}

// Build embeds every chunk with bounded concurrency. A single chunk's
// failure does not abort the build: failed chunks are excluded and counted
// in Shortfall. The build only fails when the failure fraction exceeds
// opts.MaxFailureRate, or when nothing could be embedded at all.
func Build(ctx context.Context, chunks []models.Chunk, embedder Embedder, opts BuildOptions) (*Index, error) {
	if len(chunks) == 0 {
		return nil, errors.New("empty chunk set")
	}
	if embedder == nil {
		return nil, errors.New("nil embedder")
	}
	opts.defaults()

	vecs := make([][]float32, len(chunks))
	var mu sync.Mutex
	var failed []int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i := range chunks {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, opts.Timeout)
			defer cancel()

			vec, err := embedder.Embed(callCtx, chunks[i].Text)
			if err != nil {
				slog.Warn("chunk embedding failed",
					"chunk_id", chunks[i].ChunkID, "error", err)
				mu.Lock()
				failed = append(failed, i)
				mu.Unlock()
				// Isolated failure: recorded, not propagated.
				return nil
			}
			vecs[i] = normalize(vec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	if float64(len(failed)) > opts.MaxFailureRate*float64(len(chunks)) {
		return nil, &ThresholdError{
			Failed: len(failed),
			Total:  len(chunks),
			Limit:  opts.MaxFailureRate,
		}
	}

	idx := &Index{embedder: embedder, shortfall: len(failed)}
	for i, chunk := range chunks {
		if vecs[i] == nil {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(vecs[i])
		} else if len(vecs[i]) != idx.dim {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vecs[i]), idx.dim)
		}
		chunk.Embedding = vecs[i]
		idx.entries = append(idx.entries, entry{chunk: chunk, vec: vecs[i]})
	}
	if len(idx.entries) == 0 {
		return nil, errors.New("no chunks embedded")
	}

	return idx, nil
}

// Restore rebuilds an index from chunks whose embeddings were persisted by a
// previous successful build. Chunks without an embedding are skipped.
// embedder may be nil; the restored index then reports its state but
// refuses searches.
func Restore(chunks []models.Chunk, embedder Embedder) (*Index, error) {
	idx := &Index{embedder: embedder}
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			idx.shortfall++
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(chunk.Embedding)
		} else if len(chunk.Embedding) != idx.dim {
			return nil, fmt.Errorf("stored embedding dimension mismatch: got %d, want %d", len(chunk.Embedding), idx.dim)
		}
		idx.entries = append(idx.entries, entry{chunk: chunk, vec: normalize(chunk.Embedding)})
	}
	if len(idx.entries) == 0 {
		return nil, errors.New("no stored embeddings to restore")
	}
	return idx, nil
}

// ChunkCount returns the number of indexed (successfully embedded) chunks.
func (idx *Index) ChunkCount() int {
	return len(idx.entries)
}

// Shortfall returns how many chunks were excluded by embedding failures.
func (idx *Index) Shortfall() int {
	return idx.shortfall
}

// EmbeddedChunks returns the indexed chunks with their embeddings attached,
// for persistence.
func (idx *Index) EmbeddedChunks() []models.Chunk {
	chunks := make([]models.Chunk, len(idx.entries))
	for i, e := range idx.entries {
		chunks[i] = e.chunk
	}
	return chunks
}

// Search embeds the query and returns the top k source pages ranked by the
// cosine similarity of their best chunk. Vectors are L2-normalized on
// insert, so similarity reduces to a dot product.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]models.RankedResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if idx.embedder == nil {
		return nil, errors.New("no embedding provider configured")
	}

	qvec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qvec) != idx.dim {
		return nil, fmt.Errorf("query embedding dimension mismatch: got %d, want %d", len(qvec), idx.dim)
	}
	qvec = normalize(qvec)

	type scored struct {
		ord   int
		score float64
	}
	scores := make([]scored, len(idx.entries))
	for i, e := range idx.entries {
		scores[i] = scored{ord: i, score: dot(e.vec, qvec)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].ord < scores[j].ord
	})

	seen := make(map[string]struct{})
	results := make([]models.RankedResult, 0, k)
	for _, s := range scores {
		chunk := idx.entries[s.ord].chunk
		if _, dup := seen[chunk.PageURL]; dup {
			continue
		}
		seen[chunk.PageURL] = struct{}{}
		results = append(results, models.RankedResult{
			ChunkID: chunk.ChunkID,
			PageURL: chunk.PageURL,
			Title:   chunk.PageTitle,
			Rank:    len(results) + 1,
			Score:   s.score,
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

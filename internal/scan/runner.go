// Package scan runs a battery of synthetic queries against both indexes
// and aggregates retrieval quality into coverage metrics.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/index"
	"github.com/optiview/optiview/internal/metrics"
	"github.com/optiview/optiview/internal/models"
)

const (
	defaultConcurrency = 4
	defaultMaxResults  = 10
	queryTimeout       = 60 * time.Second

	// maxErrorRate is the fraction of failed queries above which the whole
	// scan is considered failed.
	maxErrorRate = 0.5
)

// Runner evaluates scans against a pinned index generation.
type Runner struct {
	sink      events.Sink
	collector *metrics.Collector
}

// NewRunner creates a runner. sink and collector may be nil.
func NewRunner(sink events.Sink, collector *metrics.Collector) *Runner {
	if sink == nil {
		sink = events.Discard{}
	}
	return &Runner{sink: sink, collector: collector}
}

// Run evaluates every query against the generation and fills in the scan's
// results and coverage. Individual query failures are recorded on their
// rows; Run itself fails only when the error rate exceeds the threshold.
// Results keep the original query order regardless of completion order.
func (r *Runner) Run(ctx context.Context, scan *models.Scan, gen *index.Generation, queries []models.SyntheticQuery, judge Judge) error {
	if gen == nil || gen.BM25 == nil || gen.Vector == nil {
		return index.ErrNotReady
	}
	if judge == nil {
		judge = TermOverlapJudge{}
	}

	cfg := scan.Config
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if concurrency > len(queries) {
		concurrency = len(queries)
	}

	results := make([]models.QueryResult, len(queries))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var done int
	var doneMu sync.Mutex

	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.evaluate(ctx, gen, queries[i], cfg, judge)

				doneMu.Lock()
				done++
				n := done
				doneMu.Unlock()
				r.sink.ScanProgress(events.ScanProgress{
					Project: scan.Project,
					ScanID:  scan.ScanID,
					Query:   queries[i].Text,
					Done:    n,
					Total:   len(queries),
					At:      time.Now(),
				})
			}
		}()
	}

	for i := range queries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	scan.QueryResults = results
	scan.Coverage = Aggregate(results)

	if errRate(results) > maxErrorRate {
		return fmt.Errorf("scan aborted: %d of %d queries failed", scan.Coverage.ErrorCount, len(results))
	}
	return nil
}

// evaluate runs one query against both indexes and judges the results.
// Never panics the pool; failures become the row's Error.
func (r *Runner) evaluate(ctx context.Context, gen *index.Generation, query models.SyntheticQuery, cfg models.ScanConfig, judge Judge) models.QueryResult {
	result := models.QueryResult{
		Query:  query.Text,
		Intent: query.Intent,
		Source: query.Source,
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var bm25Results, vectorResults []models.RankedResult
	g, gctx := errgroup.WithContext(qctx)
	g.Go(func() error {
		var err error
		start := time.Now()
		bm25Results, err = gen.BM25.Search(gctx, query.Text, cfg.MaxResults)
		if r.collector != nil {
			r.collector.RecordTiming(metrics.OpBM25Search, time.Since(start))
			if err != nil {
				r.collector.RecordError(metrics.OpBM25Search)
			}
		}
		if err != nil {
			return fmt.Errorf("bm25 search: %w", err)
		}
		return nil
	})
	if cfg.UseHybridSearch {
		g.Go(func() error {
			var err error
			start := time.Now()
			vectorResults, err = gen.Vector.Search(gctx, query.Text, cfg.MaxResults)
			if r.collector != nil {
				r.collector.RecordTiming(metrics.OpVectorSearch, time.Since(start))
				if err != nil {
					r.collector.RecordError(metrics.OpVectorSearch)
				}
			}
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Error = err.Error()
		slog.Warn("query evaluation failed", "query", query.Text, "error", err)
		return result
	}

	result.BM25Results = bm25Results
	result.VectorResults = vectorResults

	// One judgment per page per query, shared across both lists.
	judged := make(map[string]bool)
	relevant := func(pageURL string) (bool, error) {
		if v, ok := judged[pageURL]; ok {
			return v, nil
		}
		if len(query.ExpectedPages) > 0 {
			v := contains(query.ExpectedPages, pageURL)
			judged[pageURL] = v
			return v, nil
		}
		v, err := judge.Relevant(qctx, query.Text, pageURL, gen.Pages[pageURL])
		if err != nil {
			return false, err
		}
		judged[pageURL] = v
		return v, nil
	}

	bm25MRR, bm25Hit, err := firstRelevant(bm25Results, relevant)
	if err != nil {
		result.Error = fmt.Sprintf("judge: %v", err)
		return result
	}
	vectorMRR, vectorHit, err := firstRelevant(vectorResults, relevant)
	if err != nil {
		result.Error = fmt.Sprintf("judge: %v", err)
		return result
	}

	result.MRR = models.MRR{BM25: bm25MRR, Vector: vectorMRR}
	result.Overlap = pageOverlap(bm25Results, vectorResults)
	result.Covered = bm25Hit || vectorHit
	return result
}

// firstRelevant walks a ranked list and returns the reciprocal rank of the
// first relevant page, or 0 when none is.
func firstRelevant(results []models.RankedResult, relevant func(string) (bool, error)) (float64, bool, error) {
	for _, res := range results {
		ok, err := relevant(res.PageURL)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return 1.0 / float64(res.Rank), true, nil
		}
	}
	return 0, false, nil
}

// pageOverlap is |A ∩ B| / min(|A|, |B|) over source pages, 0 when either
// list is empty.
func pageOverlap(a, b []models.RankedResult) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(a))
	for _, res := range a {
		seen[res.PageURL] = struct{}{}
	}
	shared := 0
	for _, res := range b {
		if _, ok := seen[res.PageURL]; ok {
			shared++
		}
	}
	return float64(shared) / float64(min(len(a), len(b)))
}

func contains(pages []string, url string) bool {
	for _, p := range pages {
		if p == url {
			return true
		}
	}
	return false
}

func errRate(results []models.QueryResult) float64 {
	if len(results) == 0 {
		return 0
	}
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	return float64(failed) / float64(len(results))
}

// Aggregate folds per-query outcomes into coverage metrics. Ratios are
// computed over evaluated (non-error) rows only.
func Aggregate(results []models.QueryResult) models.CoverageMetrics {
	cov := models.CoverageMetrics{TotalQueries: len(results)}

	var hybridHits, bm25Hits, vectorHits int
	var overlapSum, bm25MRRSum, vectorMRRSum float64
	for _, r := range results {
		if r.Error != "" {
			cov.ErrorCount++
			continue
		}
		cov.EvaluatedQueries++
		if r.Covered {
			hybridHits++
		}
		if r.MRR.BM25 > 0 {
			bm25Hits++
		}
		if r.MRR.Vector > 0 {
			vectorHits++
		}
		overlapSum += r.Overlap
		bm25MRRSum += r.MRR.BM25
		vectorMRRSum += r.MRR.Vector
	}

	if cov.EvaluatedQueries == 0 {
		return cov
	}
	n := float64(cov.EvaluatedQueries)
	cov.HybridCoverage = float64(hybridHits) / n
	cov.BM25Coverage = float64(bm25Hits) / n
	cov.VectorCoverage = float64(vectorHits) / n
	cov.AvgOverlap = overlapSum / n
	cov.AvgBM25MRR = bm25MRRSum / n
	cov.AvgVectorMRR = vectorMRRSum / n
	return cov
}

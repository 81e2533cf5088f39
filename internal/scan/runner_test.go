package scan

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiview/optiview/internal/index"
	"github.com/optiview/optiview/internal/models"
)

// stubSearcher answers every query with a fixed ranked page list.
type stubSearcher struct {
	pages []string
	err   error
	calls atomic.Int64
}

func (s *stubSearcher) Search(_ context.Context, _ string, k int) ([]models.RankedResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	results := make([]models.RankedResult, 0, len(s.pages))
	for i, url := range s.pages {
		if i == k {
			break
		}
		results = append(results, models.RankedResult{
			ChunkID: url + "#0",
			PageURL: url,
			Rank:    i + 1,
			Score:   1.0 / float64(i+1),
		})
	}
	return results, nil
}

func testGeneration(bm25, vector index.Searcher) *index.Generation {
	return &index.Generation{
		BM25:   bm25,
		Vector: vector,
		Pages: map[string]index.PageInfo{
			"https://example.com/a": {Title: "Alpha", Text: "alpha page about scanners"},
			"https://example.com/b": {Title: "Beta", Text: "beta page about indexes"},
			"https://example.com/c": {Title: "Gamma", Text: "gamma page about crawling"},
		},
		ChunkCount: 3,
	}
}

func hybridScan() *models.Scan {
	return &models.Scan{
		ScanID:  "scan-1",
		Project: "test",
		Status:  models.ScanStatusRunning,
		Config: models.ScanConfig{
			QuerySource:     models.QuerySourceProvided,
			UseHybridSearch: true,
			MaxResults:      10,
			Concurrency:     2,
		},
	}
}

func groundTruthQuery(text string, expected ...string) models.SyntheticQuery {
	return models.SyntheticQuery{
		Text:          text,
		Intent:        models.IntentInformational,
		Source:        models.QuerySourceProvided,
		ExpectedPages: expected,
	}
}

func TestRun_NilGeneration(t *testing.T) {
	r := NewRunner(nil, nil)
	err := r.Run(context.Background(), hybridScan(), nil, []models.SyntheticQuery{groundTruthQuery("q")}, nil)
	assert.ErrorIs(t, err, index.ErrNotReady)
}

func TestRun_GroundTruthMetrics(t *testing.T) {
	// b ranks first lexically; the relevant page a ranks second. The vector
	// index puts a first.
	lex := &stubSearcher{pages: []string{"https://example.com/b", "https://example.com/a"}}
	vec := &stubSearcher{pages: []string{"https://example.com/a", "https://example.com/c"}}
	gen := testGeneration(lex, vec)

	scan := hybridScan()
	queries := []models.SyntheticQuery{
		groundTruthQuery("alpha scanners", "https://example.com/a"),
	}

	r := NewRunner(nil, nil)
	require.NoError(t, r.Run(context.Background(), scan, gen, queries, nil))
	require.Len(t, scan.QueryResults, 1)

	row := scan.QueryResults[0]
	assert.Empty(t, row.Error)
	assert.Equal(t, 0.5, row.MRR.BM25, "relevant page at lexical rank 2")
	assert.Equal(t, 1.0, row.MRR.Vector, "relevant page at vector rank 1")
	assert.True(t, row.Covered)
	// Lists share page a out of min(2,2).
	assert.Equal(t, 0.5, row.Overlap)

	assert.Equal(t, 1.0, scan.Coverage.HybridCoverage)
	assert.Equal(t, 1, scan.Coverage.EvaluatedQueries)
	assert.Equal(t, 0, scan.Coverage.ErrorCount)
}

func TestRun_PreservesQueryOrder(t *testing.T) {
	lex := &stubSearcher{pages: []string{"https://example.com/a"}}
	vec := &stubSearcher{pages: []string{"https://example.com/a"}}
	gen := testGeneration(lex, vec)

	queries := make([]models.SyntheticQuery, 8)
	for i := range queries {
		queries[i] = groundTruthQuery("query number "+strings.Repeat("x", i+1), "https://example.com/a")
	}

	scan := hybridScan()
	scan.Config.Concurrency = 4
	r := NewRunner(nil, nil)
	require.NoError(t, r.Run(context.Background(), scan, gen, queries, nil))
	require.Len(t, scan.QueryResults, len(queries))

	for i, row := range scan.QueryResults {
		assert.Equal(t, queries[i].Text, row.Query, "row %d out of order", i)
	}
}

func TestRun_AddedCoveredQueryNeverLowersCoverage(t *testing.T) {
	// Growing the battery by a query whose relevant page is indexed and
	// retrieved must not push hybrid coverage down.
	lex := &stubSearcher{pages: []string{"https://example.com/b", "https://example.com/a"}}
	vec := &stubSearcher{pages: []string{"https://example.com/b", "https://example.com/a"}}
	gen := testGeneration(lex, vec)

	base := []models.SyntheticQuery{
		groundTruthQuery("alpha scanners", "https://example.com/a"),
		groundTruthQuery("nowhere to be found", "https://example.com/missing"),
	}

	r := NewRunner(nil, nil)
	before := hybridScan()
	require.NoError(t, r.Run(context.Background(), before, gen, base, nil))
	assert.Equal(t, 0.5, before.Coverage.HybridCoverage)

	extended := append(append([]models.SyntheticQuery{}, base...),
		groundTruthQuery("beta indexes", "https://example.com/b"))
	after := hybridScan()
	require.NoError(t, r.Run(context.Background(), after, gen, extended, nil))

	assert.GreaterOrEqual(t, after.Coverage.HybridCoverage, before.Coverage.HybridCoverage)
	assert.InDelta(t, 2.0/3.0, after.Coverage.HybridCoverage, 1e-9)
	assert.Equal(t, 1.0, after.QueryResults[2].MRR.BM25, "added query's page sits at rank 1")
}

func TestRun_LexicalOnlySkipsVector(t *testing.T) {
	lex := &stubSearcher{pages: []string{"https://example.com/a"}}
	vec := &stubSearcher{pages: []string{"https://example.com/a"}}
	gen := testGeneration(lex, vec)

	scan := hybridScan()
	scan.Config.UseHybridSearch = false

	r := NewRunner(nil, nil)
	queries := []models.SyntheticQuery{groundTruthQuery("alpha", "https://example.com/a")}
	require.NoError(t, r.Run(context.Background(), scan, gen, queries, nil))

	assert.Zero(t, vec.calls.Load(), "vector index must not be searched in lexical-only mode")
	row := scan.QueryResults[0]
	assert.Equal(t, 1.0, row.MRR.BM25)
	assert.Zero(t, row.MRR.Vector)
	assert.Zero(t, row.Overlap, "overlap is 0 when one list is empty")
	assert.True(t, row.Covered)
}

func TestRun_SearchFailureRecordedOnRow(t *testing.T) {
	lex := &stubSearcher{err: errors.New("index exploded")}
	vec := &stubSearcher{pages: []string{"https://example.com/a"}}
	gen := testGeneration(lex, vec)

	scan := hybridScan()
	queries := []models.SyntheticQuery{
		groundTruthQuery("failing one", "https://example.com/a"),
	}

	// One of one queries failed: above the error-rate threshold.
	r := NewRunner(nil, nil)
	err := r.Run(context.Background(), scan, gen, queries, nil)
	require.Error(t, err)

	require.Len(t, scan.QueryResults, 1)
	assert.Contains(t, scan.QueryResults[0].Error, "bm25 search")
	assert.Equal(t, 1, scan.Coverage.ErrorCount)
	assert.Equal(t, 0, scan.Coverage.EvaluatedQueries)
}

func TestRun_PartialFailuresUnderThreshold(t *testing.T) {
	goodLex := &stubSearcher{pages: []string{"https://example.com/a"}}
	vec := &stubSearcher{pages: []string{"https://example.com/a"}}

	// The judge fails for one specific query, the rest evaluate normally.
	gen := testGeneration(goodLex, vec)
	judge := judgeFunc(func(_ context.Context, query, _ string, _ index.PageInfo) (bool, error) {
		if strings.Contains(query, "poison") {
			return false, errors.New("judge unavailable")
		}
		return true, nil
	})

	scan := hybridScan()
	queries := []models.SyntheticQuery{
		{Text: "fine one", Source: models.QuerySourceGenerated},
		{Text: "poison pill", Source: models.QuerySourceGenerated},
		{Text: "fine two", Source: models.QuerySourceGenerated},
	}

	r := NewRunner(nil, nil)
	require.NoError(t, r.Run(context.Background(), scan, gen, queries, judge), "1/3 failures stays under the threshold")

	assert.Equal(t, 1, scan.Coverage.ErrorCount)
	assert.Equal(t, 2, scan.Coverage.EvaluatedQueries)
	assert.NotEmpty(t, scan.QueryResults[1].Error)
	assert.Equal(t, 1.0, scan.Coverage.HybridCoverage, "ratios cover evaluated rows only")
}

type judgeFunc func(ctx context.Context, query, pageURL string, info index.PageInfo) (bool, error)

func (f judgeFunc) Relevant(ctx context.Context, query, pageURL string, info index.PageInfo) (bool, error) {
	return f(ctx, query, pageURL, info)
}

func TestRun_JudgeMemoizedPerQuery(t *testing.T) {
	// The same page appears in both lists; the judge must run once for it.
	lex := &stubSearcher{pages: []string{"https://example.com/a", "https://example.com/b"}}
	vec := &stubSearcher{pages: []string{"https://example.com/a"}}
	gen := testGeneration(lex, vec)

	var judgeCalls atomic.Int64
	judge := judgeFunc(func(_ context.Context, _, pageURL string, _ index.PageInfo) (bool, error) {
		judgeCalls.Add(1)
		return pageURL == "https://example.com/b", nil
	})

	scan := hybridScan()
	queries := []models.SyntheticQuery{{Text: "memo", Source: models.QuerySourceGenerated}}

	r := NewRunner(nil, nil)
	require.NoError(t, r.Run(context.Background(), scan, gen, queries, judge))

	// Pages a and b judged once each.
	assert.Equal(t, int64(2), judgeCalls.Load())

	row := scan.QueryResults[0]
	assert.Equal(t, 0.5, row.MRR.BM25, "b is relevant at lexical rank 2")
	assert.Zero(t, row.MRR.Vector, "vector list holds only the irrelevant a")
	assert.True(t, row.Covered)
}

func TestTermOverlapJudge(t *testing.T) {
	judge := TermOverlapJudge{}
	info := index.PageInfo{
		Title: "Crawl Configuration",
		Text:  "How the crawler schedules fetches and respects robots rules.",
	}

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"most terms present", "crawler robots rules", true},
		{"half the terms present", "crawler pricing", true},
		{"few terms present", "pricing discounts checkout billing", false},
		{"no content terms", "the of and", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := judge.Relevant(context.Background(), tt.query, "https://example.com", info)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregate_EmptyAndAllErrors(t *testing.T) {
	empty := Aggregate(nil)
	assert.Zero(t, empty.TotalQueries)
	assert.Zero(t, empty.HybridCoverage)

	allFailed := Aggregate([]models.QueryResult{{Error: "x"}, {Error: "y"}})
	assert.Equal(t, 2, allFailed.TotalQueries)
	assert.Equal(t, 2, allFailed.ErrorCount)
	assert.Zero(t, allFailed.EvaluatedQueries)
	assert.Zero(t, allFailed.HybridCoverage)
}

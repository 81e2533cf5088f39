package plan

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/optiview/optiview/internal/models"
)

func result(query string, bm25, vector float64) models.QueryResult {
	return models.QueryResult{
		Query:   query,
		MRR:     models.MRR{BM25: bm25, Vector: vector},
		Covered: bm25 > 0 || vector > 0,
	}
}

func completedScan(results ...models.QueryResult) *models.Scan {
	evaluated := 0
	for _, r := range results {
		if r.Error == "" {
			evaluated++
		}
	}
	return &models.Scan{
		ScanID:       "scan-1",
		Project:      "test",
		Status:       models.ScanStatusCompleted,
		QueryResults: results,
		Coverage: models.CoverageMetrics{
			TotalQueries:     len(results),
			EvaluatedQueries: evaluated,
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		r    models.QueryResult
		want Pattern
	}{
		{"both hit", result("q", 1.0, 0.5), PatternHealthy},
		{"lexical only", result("q", 0.5, 0), PatternLexicalOnly},
		{"vector only", result("q", 0, 0.33), PatternVectorOnly},
		{"neither", result("q", 0, 0), PatternNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.r); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecommendations_RequiresCompletedScan(t *testing.T) {
	for _, status := range []models.ScanStatus{
		models.ScanStatusPending, models.ScanStatusRunning, models.ScanStatusFailed,
	} {
		scan := completedScan(result("q", 0, 0))
		scan.Status = status
		if _, err := Recommendations(scan); !errors.Is(err, ErrScanNotCompleted) {
			t.Errorf("Recommendations(%s scan) = %v, want ErrScanNotCompleted", status, err)
		}
	}
}

func TestRecommendations_GroupsByPattern(t *testing.T) {
	scan := completedScan(
		result("missing one", 0, 0),
		result("missing two", 0, 0),
		result("wording gap", 0, 1.0),
		result("healthy", 1.0, 1.0),
		models.QueryResult{Query: "broken", Error: "search failed"},
	)

	recs, err := Recommendations(scan)
	if err != nil {
		t.Fatalf("Recommendations() failed: %v", err)
	}

	// Healthy and errored queries produce nothing; two patterns remain.
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}

	notFound := recs[0]
	if notFound.Pattern != PatternNotFound {
		t.Errorf("first recommendation pattern = %q, want not_found", notFound.Pattern)
	}
	if notFound.QueryCount != 2 || len(notFound.Queries) != 2 {
		t.Errorf("not_found covers %d queries, want 2", notFound.QueryCount)
	}
	if notFound.Priority != models.PriorityHigh {
		t.Errorf("not_found priority = %q, want high", notFound.Priority)
	}
	if notFound.Effort != models.EffortHigh {
		t.Errorf("not_found effort = %q, want high", notFound.Effort)
	}

	vectorOnly := recs[1]
	if vectorOnly.Pattern != PatternVectorOnly {
		t.Errorf("second recommendation pattern = %q, want vector_only", vectorOnly.Pattern)
	}
	if vectorOnly.Effort != models.EffortLow {
		t.Errorf("vector_only effort = %q, want low", vectorOnly.Effort)
	}
}

func TestRecommendations_PriorityEscalation(t *testing.T) {
	// 1 of 4 evaluated queries is vector-only: 25%, below the 30% escalation
	// threshold.
	below := completedScan(
		result("vector gap", 0, 1.0),
		result("h1", 1, 1), result("h2", 1, 1), result("h3", 1, 1),
	)
	recs, err := Recommendations(below)
	if err != nil {
		t.Fatalf("Recommendations() failed: %v", err)
	}
	if recs[0].Priority != models.PriorityMedium {
		t.Errorf("below threshold priority = %q, want medium", recs[0].Priority)
	}

	// 2 of 4: 50%, escalated.
	above := completedScan(
		result("vector gap one", 0, 1.0),
		result("vector gap two", 0, 0.5),
		result("h1", 1, 1), result("h2", 1, 1),
	)
	recs, err = Recommendations(above)
	if err != nil {
		t.Fatalf("Recommendations() failed: %v", err)
	}
	if recs[0].Priority != models.PriorityHigh {
		t.Errorf("above threshold priority = %q, want high", recs[0].Priority)
	}
}

func TestGenerate_PhasedPlanWithSequentialIDs(t *testing.T) {
	scan := completedScan(
		result("missing", 0, 0),
		result("wording", 0, 1.0),
		result("structure", 0.5, 0),
	)

	p, err := Generate(context.Background(), scan, nil)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	if p.Project != "test" || p.ScanID != "scan-1" {
		t.Errorf("plan identity = %s/%s", p.Project, p.ScanID)
	}
	if p.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}

	// Phases follow the rule-table order.
	wantPhases := []string{"Content gaps", "Terminology alignment", "Semantic structure"}
	if len(p.Phases) != len(wantPhases) {
		t.Fatalf("got %d phases, want %d", len(p.Phases), len(wantPhases))
	}
	seq := 0
	for pi, phase := range p.Phases {
		if phase.Name != wantPhases[pi] {
			t.Errorf("phase[%d] = %q, want %q", pi, phase.Name, wantPhases[pi])
		}
		for _, item := range phase.Items {
			seq++
			wantID := fmt.Sprintf("act-%d", seq)
			if item.ID != wantID {
				t.Errorf("item ID = %q, want %q", item.ID, wantID)
			}
			if item.Completed {
				t.Errorf("item %s should start incomplete", item.ID)
			}
		}
	}
}

type stubPhraser struct {
	out string
	err error

	gotQueries []string
}

func (s *stubPhraser) PhraseAction(_ context.Context, _ string, queries []string) (string, error) {
	s.gotQueries = queries
	return s.out, s.err
}

func TestGenerate_PhraserRewritesDescriptions(t *testing.T) {
	scan := completedScan(result("missing", 0, 0))

	phraser := &stubPhraser{out: "Write a page that answers the missing query."}
	p, err := Generate(context.Background(), scan, phraser)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if p.Phases[0].Items[0].Description != phraser.out {
		t.Errorf("description = %q, want phrased text", p.Phases[0].Items[0].Description)
	}
	if len(phraser.gotQueries) != 1 || phraser.gotQueries[0] != "missing" {
		t.Errorf("phraser got queries %v", phraser.gotQueries)
	}
}

func TestGenerate_PhraserFailureKeepsRuleText(t *testing.T) {
	scan := completedScan(result("missing", 0, 0))

	failing := &stubPhraser{err: errors.New("llm offline")}
	p, err := Generate(context.Background(), scan, failing)
	if err != nil {
		t.Fatalf("Generate() should tolerate phraser failure: %v", err)
	}
	if p.Phases[0].Items[0].Description == "" {
		t.Error("rule description should survive a phrasing failure")
	}

	// An empty rewrite is treated the same way.
	empty := &stubPhraser{out: ""}
	p, err = Generate(context.Background(), scan, empty)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if p.Phases[0].Items[0].Description == "" {
		t.Error("empty rewrite must not blank the description")
	}
}

func TestToggleItem(t *testing.T) {
	scan := completedScan(
		result("missing", 0, 0),
		result("wording", 0, 1.0),
	)
	p, err := Generate(context.Background(), scan, nil)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	if err := ToggleItem(p, "act-2", true); err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if !p.Phases[1].Items[0].Completed {
		t.Error("act-2 should be completed")
	}
	if p.Phases[0].Items[0].Completed {
		t.Error("act-1 must be untouched")
	}

	if err := ToggleItem(p, "act-2", false); err != nil {
		t.Fatalf("ToggleItem() un-complete failed: %v", err)
	}
	if p.Phases[1].Items[0].Completed {
		t.Error("act-2 should be incomplete again")
	}

	if err := ToggleItem(p, "act-99", true); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("ToggleItem(unknown) = %v, want ErrItemNotFound", err)
	}
}

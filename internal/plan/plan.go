// Package plan turns scan results into a prioritized, phased action plan.
// Classification and prioritization are rule-based and deterministic; an
// LLM collaborator may rephrase item descriptions but never changes their
// priority or effort.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/optiview/optiview/internal/models"
)

// Pattern is the retrieval outcome class of one evaluated query.
type Pattern string

const (
	// PatternNotFound: neither index surfaced a relevant page.
	PatternNotFound Pattern = "not_found"
	// PatternLexicalOnly: only the lexical index found a relevant page.
	PatternLexicalOnly Pattern = "lexical_only"
	// PatternVectorOnly: only the vector index found a relevant page.
	PatternVectorOnly Pattern = "vector_only"
	// PatternHealthy: both indexes found a relevant page.
	PatternHealthy Pattern = "healthy"
)

// ErrScanNotCompleted is returned when a plan is requested for a scan that
// has not finished.
var ErrScanNotCompleted = errors.New("scan not completed")

// ErrItemNotFound is returned when toggling an action that is not in the
// plan.
var ErrItemNotFound = errors.New("action item not found")

// Phraser optionally rewrites an item description for readability. A
// failed or empty rewrite leaves the rule-based text in place.
type Phraser interface {
	PhraseAction(ctx context.Context, description string, queries []string) (string, error)
}

// Classify maps one evaluated query result onto its pattern.
func Classify(r models.QueryResult) Pattern {
	bm25Hit := r.MRR.BM25 > 0
	vectorHit := r.MRR.Vector > 0
	switch {
	case bm25Hit && vectorHit:
		return PatternHealthy
	case bm25Hit:
		return PatternLexicalOnly
	case vectorHit:
		return PatternVectorOnly
	default:
		return PatternNotFound
	}
}

// Recommendation summarizes one pattern's footprint in a scan, with the
// affected queries and the rule-table remedy.
type Recommendation struct {
	Pattern     Pattern         `json:"pattern"`
	QueryCount  int             `json:"query_count"`
	Queries     []string        `json:"queries"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	Effort      models.Effort   `json:"effort"`
}

// rule is one row of the pattern rule table. Priority escalates when the
// pattern covers at least escalateAt evaluated queries.
type rule struct {
	pattern     Pattern
	description string
	phase       string
	priority    models.Priority
	escalated   models.Priority
	escalateAt  float64 // fraction of evaluated queries
	effort      models.Effort
}

// ruleTable is ordered by phase, then severity within a phase.
var ruleTable = []rule{
	{
		pattern: PatternNotFound,
		description: "Create or expand content answering these queries: no " +
			"indexed page matches them at all. Check that the topic is covered " +
			"and that the covering pages were crawled and chunked.",
		phase:      "Content gaps",
		priority:   models.PriorityHigh,
		escalated:  models.PriorityHigh,
		escalateAt: 0,
		effort:     models.EffortHigh,
	},
	{
		pattern: PatternVectorOnly,
		description: "Add the literal terms these queries use to page titles, " +
			"headings and body copy: the meaning is there but the wording is " +
			"not, so keyword retrieval misses it.",
		phase:      "Terminology alignment",
		priority:   models.PriorityMedium,
		escalated:  models.PriorityHigh,
		escalateAt: 0.3,
		effort:     models.EffortLow,
	},
	{
		pattern: PatternLexicalOnly,
		description: "Rework pages matching these queries into self-contained, " +
			"focused sections: the keywords match but the surrounding context " +
			"dilutes the semantic signal embeddings rely on.",
		phase:      "Semantic structure",
		priority:   models.PriorityMedium,
		escalated:  models.PriorityHigh,
		escalateAt: 0.3,
		effort:     models.EffortMedium,
	},
}

// Recommendations derives the per-pattern remediation summary from a
// completed scan. Healthy queries produce no recommendation. Error rows
// are skipped.
func Recommendations(scan *models.Scan) ([]Recommendation, error) {
	if scan.Status != models.ScanStatusCompleted {
		return nil, ErrScanNotCompleted
	}

	byPattern := groupByPattern(scan.QueryResults)
	evaluated := scan.Coverage.EvaluatedQueries
	if evaluated == 0 {
		evaluated = countEvaluated(scan.QueryResults)
	}

	var recs []Recommendation
	for _, r := range ruleTable {
		queries := byPattern[r.pattern]
		if len(queries) == 0 {
			continue
		}
		recs = append(recs, Recommendation{
			Pattern:     r.pattern,
			QueryCount:  len(queries),
			Queries:     queries,
			Description: r.description,
			Priority:    r.applyPriority(len(queries), evaluated),
			Effort:      r.effort,
		})
	}
	return recs, nil
}

func (r rule) applyPriority(count, evaluated int) models.Priority {
	if evaluated > 0 && r.escalateAt > 0 &&
		float64(count)/float64(evaluated) >= r.escalateAt {
		return r.escalated
	}
	return r.priority
}

// Generate builds a phased action plan from a completed scan. phraser may
// be nil; when present it only rewrites descriptions. Deterministic apart
// from GeneratedAt and any phrasing.
func Generate(ctx context.Context, scan *models.Scan, phraser Phraser) (*models.ActionPlan, error) {
	recs, err := Recommendations(scan)
	if err != nil {
		return nil, err
	}

	p := &models.ActionPlan{
		Project:     scan.Project,
		ScanID:      scan.ScanID,
		GeneratedAt: time.Now(),
	}

	seq := 0
	for _, ruleRow := range ruleTable {
		var items []models.ActionItem
		for _, rec := range recs {
			if rec.Pattern != ruleRow.pattern {
				continue
			}
			seq++
			item := models.ActionItem{
				ID:          fmt.Sprintf("act-%d", seq),
				Description: rec.Description,
				Priority:    rec.Priority,
				Effort:      rec.Effort,
				Pattern:     string(rec.Pattern),
				QueryCount:  rec.QueryCount,
			}
			if phraser != nil {
				phrased, err := phraser.PhraseAction(ctx, item.Description, rec.Queries)
				if err != nil {
					slog.Warn("action phrasing failed, keeping rule text", "error", err)
				} else if phrased != "" {
					item.Description = phrased
				}
			}
			items = append(items, item)
		}
		if len(items) > 0 {
			p.Phases = append(p.Phases, models.ActionPhase{Name: ruleRow.phase, Items: items})
		}
	}

	return p, nil
}

// ToggleItem flips one item's completion flag. Nothing else in the plan
// changes.
func ToggleItem(p *models.ActionPlan, actionID string, completed bool) error {
	for pi := range p.Phases {
		for ii := range p.Phases[pi].Items {
			if p.Phases[pi].Items[ii].ID == actionID {
				p.Phases[pi].Items[ii].Completed = completed
				return nil
			}
		}
	}
	return ErrItemNotFound
}

func groupByPattern(results []models.QueryResult) map[Pattern][]string {
	byPattern := make(map[Pattern][]string)
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		p := Classify(r)
		byPattern[p] = append(byPattern[p], r.Query)
	}
	return byPattern
}

func countEvaluated(results []models.QueryResult) int {
	n := 0
	for _, r := range results {
		if r.Error == "" {
			n++
		}
	}
	return n
}

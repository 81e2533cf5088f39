package scan

import (
	"context"
	"strings"

	"github.com/optiview/optiview/internal/index"
	"github.com/optiview/optiview/internal/index/bm25"
)

// Judge decides whether a ranked page answers a query. A scan uses exactly
// one judge for all of its queries.
type Judge interface {
	Relevant(ctx context.Context, query, pageURL string, info index.PageInfo) (bool, error)
}

// TermOverlapJudge is the deterministic fallback judgment: a page is
// relevant when at least half of the query's content terms occur in the
// page title or text. Queries with no content terms match nothing.
type TermOverlapJudge struct{}

func (TermOverlapJudge) Relevant(_ context.Context, query, _ string, info index.PageInfo) (bool, error) {
	terms := bm25.Tokenize(query)
	if len(terms) == 0 {
		return false, nil
	}

	pageTerms := make(map[string]struct{})
	for _, t := range bm25.Tokenize(info.Title) {
		pageTerms[t] = struct{}{}
	}
	for _, t := range bm25.Tokenize(info.Text) {
		pageTerms[t] = struct{}{}
	}

	hits := 0
	for _, t := range terms {
		if _, ok := pageTerms[t]; ok {
			hits++
		}
	}
	return hits*2 >= len(terms), nil
}

// RelevanceModel is the LLM capability the optional semantic judge needs.
type RelevanceModel interface {
	JudgeRelevance(ctx context.Context, query, pageTitle, pageExcerpt string) (bool, error)
}

// LLMJudge asks a language model whether a page answers the query. Used
// only when a scan explicitly opts in; errors propagate so the query is
// marked failed rather than silently misjudged.
type LLMJudge struct {
	Model RelevanceModel
}

// excerptWords caps how much page text is shown to the model.
const excerptWords = 300

func (j LLMJudge) Relevant(ctx context.Context, query, _ string, info index.PageInfo) (bool, error) {
	return j.Model.JudgeRelevance(ctx, query, info.Title, truncateWords(info.Text, excerptWords))
}

func truncateWords(text string, limit int) string {
	fields := strings.Fields(text)
	if len(fields) <= limit {
		return text
	}
	return strings.Join(fields[:limit], " ")
}

// Package queries produces the synthetic query battery a scan probes the
// indexes with.
package queries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/optiview/optiview/internal/crawler"
	"github.com/optiview/optiview/internal/index/bm25"
	"github.com/optiview/optiview/internal/models"
)

// QueryModel is the external generation collaborator (an LLM).
type QueryModel interface {
	GenerateQueries(ctx context.Context, profile models.SiteProfile, count int) ([]string, error)
}

// ErrEmptyQuerySet is returned when validation leaves no usable queries.
var ErrEmptyQuerySet = errors.New("no valid queries")

// Generator builds synthetic query batteries from provided strings or from
// a site profile via the query model.
type Generator struct {
	model QueryModel
}

// NewGenerator creates a generator. model may be nil when only provided
// queries are used.
func NewGenerator(model QueryModel) *Generator {
	return &Generator{model: model}
}

// Provided validates and dedupes caller-supplied query strings. Ground-truth
// page URLs from expected are attached to their queries, keyed by either the
// trimmed or the original query text, and canonicalized the same way the
// crawler canonicalizes page URLs so slash and fragment variants still match.
func (g *Generator) Provided(raw []string, expected map[string][]string) ([]models.SyntheticQuery, error) {
	seen := make(map[string]struct{})
	var out []models.SyntheticQuery
	for _, orig := range raw {
		text := strings.TrimSpace(orig)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		pages := expected[text]
		if pages == nil {
			pages = expected[orig]
		}
		out = append(out, models.SyntheticQuery{
			Text:          text,
			Intent:        ClassifyIntent(text),
			Source:        models.QuerySourceProvided,
			ExpectedPages: normalizeExpected(pages),
		})
	}
	if len(out) == 0 {
		return nil, ErrEmptyQuerySet
	}
	return out, nil
}

// normalizeExpected canonicalizes ground-truth URLs; unparseable entries are
// kept verbatim so an exact match stays possible.
func normalizeExpected(pages []string) []string {
	if len(pages) == 0 {
		return nil
	}
	out := make([]string, len(pages))
	for i, p := range pages {
		norm, err := crawler.NormalizeURL(p)
		if err != nil {
			out[i] = p
			continue
		}
		out[i] = norm
	}
	return out
}

// Generated derives count queries from the site profile via the query model.
// Returns fewer than count with a warning when the model under-delivers;
// never pads with duplicates.
func (g *Generator) Generated(ctx context.Context, profile models.SiteProfile, count int) ([]models.SyntheticQuery, error) {
	if g.model == nil {
		return nil, errors.New("query generation requires an LLM model")
	}
	if count <= 0 {
		return nil, fmt.Errorf("query count must be positive, got %d", count)
	}

	raw, err := g.model.GenerateQueries(ctx, profile, count)
	if err != nil {
		return nil, fmt.Errorf("generate queries: %w", err)
	}

	seen := make(map[string]struct{})
	var out []models.SyntheticQuery
	for _, text := range raw {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.SyntheticQuery{
			Text:   text,
			Intent: ClassifyIntent(text),
			Source: models.QuerySourceGenerated,
		})
		if len(out) == count {
			break
		}
	}

	if len(out) == 0 {
		return nil, ErrEmptyQuerySet
	}
	if len(out) < count {
		slog.Warn("query generation under-delivered", "requested", count, "got", len(out))
	}
	return out, nil
}

// ClassifyIntent tags a query with its intent using a fixed rule table.
// Deterministic; applied identically to provided and generated queries.
func ClassifyIntent(text string) models.Intent {
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, "how "),
		strings.Contains(lower, "how to"),
		strings.Contains(lower, "how do"),
		strings.HasPrefix(lower, "tutorial"),
		strings.Contains(lower, "step by step"):
		return models.IntentHowTo

	case strings.Contains(lower, " vs "),
		strings.Contains(lower, " versus "),
		strings.Contains(lower, "compare"),
		strings.Contains(lower, "difference between"),
		strings.Contains(lower, "alternative"),
		strings.Contains(lower, "better than"):
		return models.IntentComparison

	case strings.Contains(lower, "price"),
		strings.Contains(lower, "pricing"),
		strings.Contains(lower, "cost"),
		strings.Contains(lower, "buy"),
		strings.Contains(lower, "discount"),
		strings.Contains(lower, "free trial"):
		return models.IntentTransactional

	default:
		return models.IntentInformational
	}
}

// BuildProfile summarizes crawled pages into a site profile for query
// generation: seed page metadata plus the most frequent content terms.
func BuildProfile(seedURL string, pages []models.CrawledPage) models.SiteProfile {
	profile := models.SiteProfile{Domain: seedURL}

	freq := make(map[string]int)
	for i := range pages {
		page := &pages[i]
		if page.Status != models.PageStatusSuccess {
			continue
		}
		if page.CrawlDepth == 0 {
			profile.Title = page.Title
			profile.Description = page.MetaDescription
			profile.Language = page.Metadata.Language
			if profile.SampleText == "" {
				profile.SampleText = truncateWords(page.Content, 200)
			}
		}
		for _, tok := range bm25.Tokenize(page.Title + " " + page.H1 + " " + page.Content) {
			if len(tok) < 3 {
				continue
			}
			freq[tok]++
		}
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > 15 {
		terms = terms[:15]
	}
	profile.TopKeywords = terms

	return profile
}

func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}

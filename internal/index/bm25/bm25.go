// Package bm25 implements the lexical retrieval index: an inverted
// term-frequency index over chunks scored with Okapi BM25.
package bm25

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/optiview/optiview/internal/models"
)

// Okapi BM25 parameters: k1 controls term-frequency saturation, b controls
// document length normalization.
const (
	k1 = 1.2
	b  = 0.75
)

type document struct {
	chunk  models.Chunk
	length int
	terms  map[string]int
}

// Index is an immutable BM25 index over a chunk set. Build it once with
// Build; searches are read-only and safe for concurrent use.
type Index struct {
	docs     []document
	postings map[string][]int // term -> ordinals of docs containing it
	df       map[string]int
	avgLen   float64
}

// Build tokenizes and indexes the chunk set. All-or-nothing: it either
// returns a complete index or an error.
func Build(chunks []models.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, errors.New("empty chunk set")
	}

	idx := &Index{
		docs:     make([]document, 0, len(chunks)),
		postings: make(map[string][]int),
		df:       make(map[string]int),
	}

	totalLen := 0
	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Text)
		terms := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			terms[tok]++
		}
		for term := range terms {
			idx.df[term]++
			idx.postings[term] = append(idx.postings[term], i)
		}
		idx.docs = append(idx.docs, document{
			chunk:  chunk,
			length: len(tokens),
			terms:  terms,
		})
		totalLen += len(tokens)
	}

	idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	if idx.avgLen == 0 {
		idx.avgLen = 1
	}

	return idx, nil
}

// ChunkCount returns the number of indexed chunks.
func (idx *Index) ChunkCount() int {
	return len(idx.docs)
}

// idf returns the inverse document frequency weight of a term.
func (idx *Index) idf(term string) float64 {
	n := float64(len(idx.docs))
	df := float64(idx.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Search scores every chunk containing at least one query term and returns
// the top k source pages ranked by their best-scoring chunk. Ties break by
// original chunk order, so results are deterministic.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]models.RankedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	scores := make(map[int]float64)
	for _, term := range queryTerms {
		ordinals, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := idx.idf(term)
		for _, ord := range ordinals {
			doc := idx.docs[ord]
			tf := float64(doc.terms[term])
			norm := 1 - b + b*float64(doc.length)/idx.avgLen
			scores[ord] += idf * tf * (k1 + 1) / (tf + k1*norm)
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}

	ordinals := make([]int, 0, len(scores))
	for ord := range scores {
		ordinals = append(ordinals, ord)
	}
	sort.Slice(ordinals, func(i, j int) bool {
		si, sj := scores[ordinals[i]], scores[ordinals[j]]
		if si != sj {
			return si > sj
		}
		return ordinals[i] < ordinals[j]
	})

	// Collapse chunk hits to page level: the first (best) chunk of each
	// page defines the page's rank and citable chunk.
	seen := make(map[string]struct{})
	results := make([]models.RankedResult, 0, k)
	for _, ord := range ordinals {
		doc := idx.docs[ord]
		if _, dup := seen[doc.chunk.PageURL]; dup {
			continue
		}
		seen[doc.chunk.PageURL] = struct{}{}
		results = append(results, models.RankedResult{
			ChunkID: doc.chunk.ChunkID,
			PageURL: doc.chunk.PageURL,
			Title:   doc.chunk.PageTitle,
			Rank:    len(results) + 1,
			Score:   scores[ord],
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

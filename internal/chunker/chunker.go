// Package chunker splits crawled page text into retrieval-sized chunks.
// Both retrieval indexes operate on the exact chunk set produced here, so
// cross-index rank comparisons stay meaningful.
package chunker

import (
	"fmt"
	"strings"

	"github.com/optiview/optiview/internal/models"
)

// Config defines chunking parameters, counted in words.
type Config struct {
	// TargetWords: window size of each chunk.
	TargetWords int
	// OverlapWords: words shared between adjacent chunks.
	OverlapWords int
	// MinWords: chunks below this are dropped as boilerplate.
	MinWords int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetWords:  200,
		OverlapWords: 40,
		MinWords:     25,
	}
}

// Validate checks the config for usable values.
func (c Config) Validate() error {
	if c.TargetWords <= 0 {
		return fmt.Errorf("target words must be positive, got %d", c.TargetWords)
	}
	if c.OverlapWords < 0 || c.OverlapWords >= c.TargetWords {
		return fmt.Errorf("overlap words must be in [0, target), got %d", c.OverlapWords)
	}
	if c.MinWords < 0 {
		return fmt.Errorf("min words must not be negative, got %d", c.MinWords)
	}
	return nil
}

// Chunk splits a successfully crawled page's cleaned text into overlapping
// word windows. A pure function of its inputs: re-chunking the same page
// yields identical boundaries and count.
func Chunk(page *models.CrawledPage, cfg Config) []models.Chunk {
	if page == nil || page.Status != models.PageStatusSuccess {
		return nil
	}

	words := strings.Fields(page.Content)
	if len(words) < cfg.MinWords {
		return nil
	}

	step := cfg.TargetWords - cfg.OverlapWords
	var chunks []models.Chunk
	position := 0

	for start := 0; start < len(words); start += step {
		end := start + cfg.TargetWords
		if end > len(words) {
			end = len(words)
		}

		window := words[start:end]
		if len(window) < cfg.MinWords && position > 0 {
			// Tail smaller than the minimum is already covered by the
			// previous window's overlap.
			break
		}

		chunks = append(chunks, models.Chunk{
			ChunkID:   fmt.Sprintf("%s#%d", page.URL, position),
			Project:   page.Project,
			PageURL:   page.URL,
			PageTitle: page.Title,
			Text:      strings.Join(window, " "),
			WordCount: len(window),
			Position:  position,
		})
		position++

		if end == len(words) {
			break
		}
	}

	return chunks
}

// ChunkAll chunks every successful page, preserving page order and assigning
// per-page positions.
func ChunkAll(pages []models.CrawledPage, cfg Config) []models.Chunk {
	var all []models.Chunk
	for i := range pages {
		all = append(all, Chunk(&pages[i], cfg)...)
	}
	return all
}

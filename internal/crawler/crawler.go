// Package crawler fetches a site breadth-first from a seed URL under page,
// depth and pacing constraints, extracting text, metadata and the link graph.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pemistahl/lingua-go"

	"github.com/optiview/optiview/internal/events"
	"github.com/optiview/optiview/internal/metrics"
	"github.com/optiview/optiview/internal/models"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// Config constrains one crawl run.
type Config struct {
	MaxPages      int
	MaxDepth      int
	Delay         time.Duration // minimum gap between fetch starts
	Timeout       time.Duration // per-fetch timeout
	RespectRobots bool
	UserAgent     string
}

// Validate checks the config for usable values.
func (c Config) Validate() error {
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive, got %d", c.MaxPages)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", c.Delay)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "OptiViewBot/1.0 (+https://optiview.io/bot)"
	}
	return c
}

// Crawler fetches pages. Safe to reuse across runs; each run keeps its own
// queue and visited state.
type Crawler struct {
	client    *http.Client
	sink      events.Sink
	collector *metrics.Collector
	detector  lingua.LanguageDetector
}

// New creates a crawler. sink and collector may be nil.
func New(sink events.Sink, collector *metrics.Collector) *Crawler {
	if sink == nil {
		sink = events.Discard{}
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English, lingua.German, lingua.French, lingua.Spanish,
			lingua.Italian, lingua.Portuguese, lingua.Dutch,
		).
		Build()

	return &Crawler{
		client:    &http.Client{},
		sink:      sink,
		collector: collector,
		detector:  detector,
	}
}

type queueItem struct {
	url    string
	depth  int
	parent string
}

// Crawl walks the site breadth-first from seedURL. Pages that fail to fetch
// are recorded as failed and do not halt the crawl; skipped URLs (robots,
// depth, cap) are neither fetched nor counted. Cancelling ctx stops the
// crawl before the next fetch and marks the run inactive.
func (c *Crawler) Crawl(ctx context.Context, project, seedURL string, cfg Config) (*models.CrawlRun, []models.CrawledPage, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	seed, err := NormalizeURL(seedURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid seed url: %w", err)
	}

	run := &models.CrawlRun{
		Project:   project,
		SeedURL:   seed,
		StartedAt: time.Now(),
		IsActive:  true,
	}

	robots := newRobotsCache(&http.Client{Timeout: cfg.Timeout}, cfg.UserAgent)
	visited := map[string]struct{}{seed: {}}
	queue := []queueItem{{url: seed, depth: 0}}
	var pages []models.CrawledPage
	var lastFetch time.Time
	cancelled := false

	for len(queue) > 0 && run.TotalPages < cfg.MaxPages {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		item := queue[0]
		queue = queue[1:]

		if item.depth > cfg.MaxDepth {
			continue
		}
		if skipByExtension(item.url) {
			continue
		}
		if cfg.RespectRobots {
			allowed, err := robots.Allowed(ctx, item.url)
			if err != nil || !allowed {
				slog.Debug("robots disallow", "url", item.url)
				continue
			}
		}

		// Global pacing: at least cfg.Delay between fetch starts.
		if wait := cfg.Delay - time.Since(lastFetch); !lastFetch.IsZero() && wait > 0 {
			select {
			case <-ctx.Done():
				cancelled = true
			case <-time.After(wait):
			}
			if cancelled {
				break
			}
		}
		lastFetch = time.Now()

		run.CurrentURL = item.url
		run.QueueSize = len(queue)
		c.sink.CrawlProgress(events.CrawlProgress{
			Project:    project,
			CurrentURL: item.url,
			QueueSize:  len(queue),
			Total:      run.TotalPages,
			Succeeded:  run.SuccessfulPages,
			Failed:     run.FailedPages,
			At:         time.Now(),
		})

		page := c.fetchPage(ctx, project, seed, item, cfg)
		pages = append(pages, page)
		run.TotalPages++
		if page.Status == models.PageStatusSuccess {
			run.SuccessfulPages++
		} else {
			run.FailedPages++
		}

		// Enqueue unvisited internal links one level deeper.
		if page.Status == models.PageStatusSuccess && item.depth < cfg.MaxDepth {
			for _, link := range page.InternalLinks {
				if _, dup := visited[link]; dup {
					continue
				}
				visited[link] = struct{}{}
				queue = append(queue, queueItem{url: link, depth: item.depth + 1, parent: item.url})
			}
		}
	}

	now := time.Now()
	run.CompletedAt = &now
	run.IsActive = false
	run.CurrentURL = ""
	run.QueueSize = 0
	if cancelled {
		run.Error = "crawl cancelled"
	}

	slog.Info("crawl finished",
		"project", project, "seed", seed,
		"total", run.TotalPages, "succeeded", run.SuccessfulPages,
		"failed", run.FailedPages, "cancelled", cancelled)
	return run, pages, nil
}

// fetchPage fetches and extracts one URL, producing a success or failed
// page record. Never returns an error: fetch failures are data.
func (c *Crawler) fetchPage(ctx context.Context, project, seed string, item queueItem, cfg Config) models.CrawledPage {
	page := models.CrawledPage{
		Project:    project,
		URL:        item.url,
		CrawledAt:  time.Now(),
		CrawlDepth: item.depth,
		ParentURL:  item.parent,
	}

	body, err := c.fetch(ctx, item.url, cfg)
	if err != nil {
		page.Status = models.PageStatusFailed
		page.ErrorMessage = err.Error()
		slog.Debug("page fetch failed", "url", item.url, "error", err)
		return page
	}

	content, err := extractPage(item.url, body, c.detector)
	if err != nil {
		page.Status = models.PageStatusFailed
		page.ErrorMessage = err.Error()
		return page
	}

	page.Status = models.PageStatusSuccess
	page.Title = content.Title
	page.H1 = content.H1
	page.MetaDescription = content.MetaDescription
	page.CanonicalURL = content.CanonicalURL
	page.Content = content.Text
	page.WordCount = content.WordCount
	page.Metadata = models.PageMetadata{
		Keywords:    content.Keywords,
		Author:      content.Author,
		Language:    content.Language,
		PublishedAt: content.PublishedAt,
		ModifiedAt:  content.ModifiedAt,
	}

	for _, link := range content.Links {
		if SameSite(seed, link) {
			page.InternalLinks = append(page.InternalLinks, link)
		} else {
			page.OutboundLinks = append(page.OutboundLinks, link)
		}
	}

	return page
}

// fetch performs one HTTP GET with timeout, content-type and size guards.
func (c *Crawler) fetch(ctx context.Context, rawURL string, cfg Config) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if c.collector != nil {
			c.collector.RecordTiming(metrics.OpFetch, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		if c.collector != nil {
			c.collector.RecordError(metrics.OpFetch)
		}
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.collector != nil {
			c.collector.RecordError(metrics.OpFetch)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "xml") {
		return nil, fmt.Errorf("non-html content type %q", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	return body, nil
}

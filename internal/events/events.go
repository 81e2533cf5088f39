// Package events carries best-effort progress notifications from the
// pipeline to external observers (CLI progress bars, the WebSocket hub).
package events

import (
	"log/slog"
	"time"
)

// CrawlProgress is emitted between page fetches.
type CrawlProgress struct {
	Project    string    `json:"project"`
	CurrentURL string    `json:"current_url"`
	QueueSize  int       `json:"queue_size"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	At         time.Time `json:"at"`
}

// ScanProgress is emitted each time a query finishes.
type ScanProgress struct {
	Project string    `json:"project"`
	ScanID  string    `json:"scan_id"`
	Query   string    `json:"query"`
	Done    int       `json:"done"`
	Total   int       `json:"total"`
	At      time.Time `json:"at"`
}

// Completion signals that a crawl, index build or scan reached a terminal
// state. Err is empty on success.
type Completion struct {
	Project string    `json:"project"`
	Kind    string    `json:"kind"` // crawl | index | scan | plan
	ID      string    `json:"id,omitempty"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Sink receives progress events. Implementations must not block the caller;
// delivery is best-effort.
type Sink interface {
	CrawlProgress(p CrawlProgress)
	ScanProgress(p ScanProgress)
	Completed(c Completion)
}

// Fanout delivers every event to all sinks in order.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

type fanout []Sink

func (f fanout) CrawlProgress(p CrawlProgress) {
	for _, s := range f {
		s.CrawlProgress(p)
	}
}

func (f fanout) ScanProgress(p ScanProgress) {
	for _, s := range f {
		s.ScanProgress(p)
	}
}

func (f fanout) Completed(c Completion) {
	for _, s := range f {
		s.Completed(c)
	}
}

// Discard ignores all events.
type Discard struct{}

func (Discard) CrawlProgress(CrawlProgress) {}
func (Discard) ScanProgress(ScanProgress)   {}
func (Discard) Completed(Completion)        {}

// LogSink writes events to slog at debug/info level.
type LogSink struct{}

func (LogSink) CrawlProgress(p CrawlProgress) {
	slog.Debug("crawl progress",
		"project", p.Project, "url", p.CurrentURL,
		"queue", p.QueueSize, "total", p.Total,
		"succeeded", p.Succeeded, "failed", p.Failed)
}

func (LogSink) ScanProgress(p ScanProgress) {
	slog.Debug("scan progress",
		"project", p.Project, "scan_id", p.ScanID,
		"done", p.Done, "total", p.Total)
}

func (LogSink) Completed(c Completion) {
	if c.Err != "" {
		slog.Warn("operation failed", "project", c.Project, "kind", c.Kind, "id", c.ID, "error", c.Err)
		return
	}
	slog.Info("operation completed", "project", c.Project, "kind", c.Kind, "id", c.ID)
}

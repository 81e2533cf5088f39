package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt per scheme+host.
type robotsCache struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsCache(client *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the crawler may fetch the given URL. Fetch or
// parse failures of robots.txt itself are treated as allow-all, matching
// the 404 convention.
func (r *robotsCache) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	origin := u.Scheme + "://" + u.Host

	r.mu.Lock()
	data, ok := r.cache[origin]
	r.mu.Unlock()

	if !ok {
		data = r.fetch(ctx, origin)
		r.mu.Lock()
		r.cache[origin] = data
		r.mu.Unlock()
	}

	if data == nil {
		return true, nil
	}
	group := data.FindGroup(r.userAgent)
	return group.Test(u.Path), nil
}

// fetch retrieves and parses robots.txt for an origin. Returns nil (allow
// all) when the file is missing or unreadable.
func (r *robotsCache) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}

package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL canonicalizes a URL for dedup: scheme and host lowercased,
// fragment stripped, default ports dropped, trailing slash trimmed on
// non-root paths. Only http(s) URLs are accepted.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":80")
	if u.Scheme == "https" {
		host = strings.TrimSuffix(strings.ToLower(u.Host), ":443")
	}
	u.Host = host

	u.Fragment = ""
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// ResolveLink resolves a possibly relative href against its page URL and
// normalizes the result.
func ResolveLink(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return NormalizeURL(base.ResolveReference(ref).String())
}

// registrableDomain returns the eTLD+1 of a URL's host, the unit by which
// links are classified internal vs outbound.
func registrableDomain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Hosts without a public suffix (localhost, IPs) compare as-is.
		return host, nil
	}
	return domain, nil
}

// SameSite reports whether two URLs share a registrable domain.
func SameSite(a, b string) bool {
	da, err := registrableDomain(a)
	if err != nil {
		return false
	}
	db, err := registrableDomain(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(da, db)
}

// skipByExtension filters URLs that are clearly not HTML documents.
func skipByExtension(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	path := strings.ToLower(u.Path)
	for _, ext := range []string{
		".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
		".css", ".js", ".json", ".xml", ".zip", ".gz", ".tar", ".mp3",
		".mp4", ".avi", ".mov", ".woff", ".woff2", ".ttf", ".eot",
	} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

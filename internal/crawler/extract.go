package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/pemistahl/lingua-go"
)

// pageContent is everything extracted from one fetched HTML document.
type pageContent struct {
	Title           string
	H1              string
	MetaDescription string
	CanonicalURL    string
	Keywords        []string
	Author          string
	Language        string
	PublishedAt     *time.Time
	ModifiedAt      *time.Time
	Text            string
	WordCount       int
	Links           []string
}

// extractPage parses an HTML document: head metadata and links via goquery,
// main visible text via go-readability with a goquery fallback, language
// from the lang attribute with a lingua fallback.
func extractPage(pageURL string, body []byte, detector lingua.LanguageDetector) (*pageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	content := &pageContent{
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		H1:              strings.TrimSpace(doc.Find("h1").First().Text()),
		MetaDescription: metaContent(doc, "description"),
		Author:          metaContent(doc, "author"),
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if canonical, err := ResolveLink(pageURL, href); err == nil {
			content.CanonicalURL = canonical
		}
	}

	if keywords := metaContent(doc, "keywords"); keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				content.Keywords = append(content.Keywords, kw)
			}
		}
	}

	content.PublishedAt = metaTime(doc, "article:published_time")
	content.ModifiedAt = metaTime(doc, "article:modified_time")

	// Main text: readability first, stripped body as fallback.
	content.Text = mainText(pageURL, body, doc)
	content.WordCount = len(strings.Fields(content.Text))

	// Language: declared attribute wins over detection.
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		content.Language = strings.ToLower(strings.SplitN(lang, "-", 2)[0])
	} else if detector != nil && content.WordCount >= 10 {
		if lang, ok := detector.DetectLanguageOf(content.Text); ok {
			content.Language = strings.ToLower(lang.IsoCode639_1().String())
		}
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		link, err := ResolveLink(pageURL, href)
		if err != nil {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		content.Links = append(content.Links, link)
	})

	return content, nil
}

func metaContent(doc *goquery.Document, name string) string {
	sel := fmt.Sprintf(`meta[name="%s"]`, name)
	if v, ok := doc.Find(sel).First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	sel = fmt.Sprintf(`meta[property="%s"]`, name)
	if v, ok := doc.Find(sel).First().Attr("content"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func metaTime(doc *goquery.Document, property string) *time.Time {
	raw := metaContent(doc, property)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// mainText extracts the page's readable text. go-readability distills the
// main article; pages it cannot handle fall back to the whole body with
// script/style/nav noise removed.
func mainText(pageURL string, body []byte, doc *goquery.Document) string {
	if u, err := url.Parse(pageURL); err == nil {
		parser := readability.NewParser()
		if article, err := parser.Parse(bytes.NewReader(body), u); err == nil {
			if text := collapseWhitespace(article.TextContent); len(strings.Fields(text)) >= 10 {
				return text
			}
		}
	}

	clone := doc.Clone()
	clone.Find("script, style, noscript, nav, header, footer, aside").Remove()
	return collapseWhitespace(clone.Find("body").Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

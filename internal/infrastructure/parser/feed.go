package parser

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const defaultUserAgent = "NewsDigest/1.0"

var strictPolicy = bluemonday.StrictPolicy()

// feedReader downloads and parses RSS/Atom/JSON feeds through gofeed.
type feedReader struct {
	client    *http.Client
	userAgent string
}

func newFeedReader(client *http.Client, userAgent string) feedReader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return feedReader{client: client, userAgent: userAgent}
}

func (f feedReader) read(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = f.userAgent

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return feed, nil
}

// publishedAt resolves the entry timestamp from the published date, then the updated date.
func publishedAt(item *gofeed.Item) (time.Time, bool) {
	if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
		return item.PublishedParsed.UTC(), true
	}
	if item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero() {
		return item.UpdatedParsed.UTC(), true
	}
	return time.Time{}, false
}

func firstCategory(item *gofeed.Item) string {
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func titleOrDefault(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	return title
}

// stripHTML turns an HTML fragment into single-spaced plain text.
func stripHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return normalizeWhitespace(html.UnescapeString(strictPolicy.Sanitize(raw)))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func validFeedURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

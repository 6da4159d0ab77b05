package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
)

// articleFeed turns feed entries into candidate items and enriches them with page text.
type articleFeed struct {
	feeds     feedReader
	extractor ContentExtractor
	logger    *slog.Logger
}

func (a articleFeed) toCandidate(ctx context.Context, req scanner.Request, entry *gofeed.Item, sourceName string, published time.Time, meta map[string]string) (domain.CandidateItem, bool) {
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		a.warn("skip entry without link", "source", sourceName, "title", entry.Title)
		return domain.CandidateItem{}, false
	}

	if category := firstCategory(entry); category != "" {
		meta[domain.MetaCategory] = category
	}

	item := domain.CandidateItem{
		OriginID:         link,
		SourceName:       sourceName,
		Title:            titleOrDefault(entry.Title),
		ShortDescription: stripHTML(entry.Description),
		PublishedAt:      published,
		Metadata:         meta,
	}

	if req.IncludeContent {
		item.RawText = a.bodyText(ctx, link, entry)
	}
	return item, true
}

func (a articleFeed) bodyText(ctx context.Context, link string, entry *gofeed.Item) string {
	if a.extractor != nil {
		text, err := a.extractor.Extract(ctx, link)
		if err == nil {
			return text
		}
		a.debug("content extraction failed", "url", link, "error", err)
	}
	return stripHTML(entry.Content)
}

func (a articleFeed) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

func (a articleFeed) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

// BlogScanner reads one or more RSS/Atom feeds of a single blog.
type BlogScanner struct {
	articleFeed
}

// NewBlogScanner wires the feed reader; extractor may be nil to skip body enrichment.
func NewBlogScanner(client *http.Client, userAgent string, extractor ContentExtractor, log *slog.Logger) *BlogScanner {
	return &BlogScanner{articleFeed{
		feeds:     newFeedReader(client, userAgent),
		extractor: extractor,
		logger:    log,
	}}
}

// Name identifies the strategy inside the registry.
func (b *BlogScanner) Name() string {
	return "blog"
}

// Scan returns posts from every configured feed published inside the window.
func (b *BlogScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	results := make([]domain.CandidateItem, 0)
	for _, cat := range req.Categories {
		if !validFeedURL(cat.URL) {
			b.warn("skip malformed feed url", "site", req.SiteName, "url", cat.URL)
			continue
		}

		feed, err := b.feeds.read(ctx, cat.URL)
		if err != nil {
			b.warn("blog feed failed", "site", req.SiteName, "url", cat.URL, "error", err)
			continue
		}

		for _, entry := range feed.Items {
			published, ok := publishedAt(entry)
			if !ok {
				published = req.Now.UTC()
			}
			if !req.Accepts(published) {
				continue
			}

			meta := map[string]string{}
			if cat.Name != "" {
				meta[domain.MetaFeed] = cat.Name
			}
			if item, ok := b.toCandidate(ctx, req, entry, req.SiteName, published, meta); ok {
				results = append(results, item)
			}
		}
	}

	return results, nil
}

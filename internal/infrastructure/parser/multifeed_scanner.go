package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
)

// MultiFeedScanner reads several named feeds of one publisher concurrently.
type MultiFeedScanner struct {
	articleFeed
	workers int
}

// NewMultiFeedScanner wires the feed reader; workers bounds concurrent sub-feed fetches.
func NewMultiFeedScanner(client *http.Client, userAgent string, extractor ContentExtractor, workers int, log *slog.Logger) *MultiFeedScanner {
	if workers <= 0 {
		workers = 4
	}
	return &MultiFeedScanner{
		articleFeed: articleFeed{
			feeds:     newFeedReader(client, userAgent),
			extractor: extractor,
			logger:    log,
		},
		workers: workers,
	}
}

// Name identifies the strategy inside the registry.
func (m *MultiFeedScanner) Name() string {
	return "multifeed"
}

// Scan fetches the selected sub-feeds and returns their entries newest first.
// Options["feeds"] restricts the scan to a comma separated list of feed names.
func (m *MultiFeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	feeds := selectFeeds(req.Categories, req.Options["feeds"])
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	perFeed := make([][]domain.CandidateItem, len(feeds))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.workers)

	for i, cat := range feeds {
		group.Go(func() error {
			perFeed[i] = m.scanFeed(groupCtx, req, cat)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	results := make([]domain.CandidateItem, 0)
	for _, items := range perFeed {
		results = append(results, items...)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PublishedAt.After(results[j].PublishedAt)
	})
	return results, nil
}

func (m *MultiFeedScanner) scanFeed(ctx context.Context, req scanner.Request, cat scanner.Category) []domain.CandidateItem {
	if !validFeedURL(cat.URL) {
		m.warn("skip malformed feed url", "site", req.SiteName, "feed", cat.Name, "url", cat.URL)
		return nil
	}

	feed, err := m.feeds.read(ctx, cat.URL)
	if err != nil {
		m.warn("sub-feed failed", "site", req.SiteName, "feed", cat.Name, "error", err)
		return nil
	}

	sourceName := feedSourceName(req.SiteName, cat.Name)
	items := make([]domain.CandidateItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published, ok := publishedAt(entry)
		if !ok {
			m.debug("skip entry without date", "feed", cat.Name, "title", entry.Title)
			continue
		}
		if !req.Accepts(published) {
			continue
		}

		meta := map[string]string{domain.MetaFeed: cat.Name}
		if item, ok := m.toCandidate(ctx, req, entry, sourceName, published, meta); ok {
			items = append(items, item)
		}
	}
	return items
}

// feedSourceName builds names like "Anthropic News". Casers are stateful, so one is made per call.
func feedSourceName(site, feed string) string {
	feed = strings.TrimSpace(feed)
	if feed == "" {
		return site
	}
	return strings.TrimSpace(site + " " + cases.Title(language.English).String(feed))
}

func selectFeeds(categories []scanner.Category, filter string) []scanner.Category {
	if strings.TrimSpace(filter) == "" {
		return categories
	}

	wanted := map[string]struct{}{}
	for _, name := range strings.Split(filter, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			wanted[name] = struct{}{}
		}
	}

	selected := make([]scanner.Category, 0, len(categories))
	for _, cat := range categories {
		if _, ok := wanted[strings.ToLower(cat.Name)]; ok {
			selected = append(selected, cat)
		}
	}
	return selected
}

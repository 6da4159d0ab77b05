package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
)

const (
	arxivBaseURL = "https://arxiv.org"
	metaArxivID  = "arxiv_id"
)

var (
	dateExpr       = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)
	errMissingDate = errors.New("entry has no date")
)

// ArxivScanner crawls category listing pages and keeps entries inside the lookback window.
type ArxivScanner struct {
	client    *http.Client
	userAgent string
	pageSize  int
	logger    *slog.Logger
}

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client, log *slog.Logger) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivScanner{client: client, userAgent: defaultUserAgent, pageSize: 200, logger: log}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks through each category URL and returns entries dated on or after the cutoff day.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	cutoffDay := req.Cutoff().UTC().Truncate(24 * time.Hour)
	results := make([]domain.CandidateItem, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			pageItems, shouldContinue := a.extractItems(doc, cutoffDay, req.SiteName, cat.Name)
			for _, item := range pageItems {
				if _, ok := seen[item.OriginID]; ok {
					continue
				}
				seen[item.OriginID] = struct{}{}
				results = append(results, item)
			}

			if !shouldContinue {
				break
			}
			skip += a.pageSize
		}
	}

	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivScanner) extractItems(doc *goquery.Document, cutoffDay time.Time, siteName, category string) ([]domain.CandidateItem, bool) {
	var (
		collected    []domain.CandidateItem
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		item, err := parseEntry(dt, dd, siteName, category)
		if err != nil {
			if a.logger != nil {
				a.logger.Debug("skip arxiv entry", "category", category, "error", err)
			}
			return true
		}

		if item.PublishedAt.Before(cutoffDay) {
			continueScan = false
			return false
		}
		collected = append(collected, item)
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseEntry(dt, dd *goquery.Selection, siteName, category string) (domain.CandidateItem, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if href == "" {
		return domain.CandidateItem{}, errors.New("entry has no abstract link")
	}

	id := strings.TrimSpace(link.Text())
	if id == "" {
		id = href[strings.LastIndex(href, "/abs/")+len("/abs/"):]
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimPrefix(title, "Title:")
	title = strings.TrimSpace(title)

	summary := dd.Find(".mathjax").Not(".list-title").First().Text()
	summary = strings.TrimPrefix(summary, "Abstract:")
	summary = strings.TrimSpace(summary)

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	match := dateExpr.FindString(dateText)
	if match == "" {
		return domain.CandidateItem{}, errMissingDate
	}
	publishedAt, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return domain.CandidateItem{}, fmt.Errorf("parse date %q: %w", match, err)
	}

	meta := map[string]string{metaArxivID: id}
	if category != "" {
		meta[domain.MetaCategory] = category
	}

	return domain.CandidateItem{
		OriginID:         href,
		SourceName:       siteName,
		Title:            titleOrDefault(title),
		ShortDescription: normalizeWhitespace(summary),
		PublishedAt:      publishedAt.UTC(),
		Metadata:         meta,
	}, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

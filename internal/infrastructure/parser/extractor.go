package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

const (
	maxPageBytes      = 5 << 20
	minReadableLength = 200
)

// ErrNoContent is returned when a page yields no readable text.
var ErrNoContent = errors.New("no readable content")

// ContentExtractor fetches a web page and returns its main body as plain text.
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// ReadabilityExtractor extracts article bodies with go-readability, falling back to
// paragraph text when the readable result is too short.
type ReadabilityExtractor struct {
	client    *http.Client
	userAgent string
	limiter   *HostRateLimiter
}

var _ ContentExtractor = (*ReadabilityExtractor)(nil)

// NewReadabilityExtractor wires an HTTP client and an optional per-host limiter.
func NewReadabilityExtractor(client *http.Client, userAgent string, limiter *HostRateLimiter) *ReadabilityExtractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &ReadabilityExtractor{client: client, userAgent: userAgent, limiter: limiter}
}

// Extract downloads pageURL and returns its readable text.
func (e *ReadabilityExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}
	if err := e.limiter.Wait(ctx, pageURL); err != nil {
		return "", fmt.Errorf("rate limit %s: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page %s returned %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	return ExtractText(string(body), parsed)
}

// ExtractText strips non-content elements from raw HTML and returns the readable body.
func ExtractText(raw string, pageURL *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, iframe, nav, header, footer, aside, form").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render cleaned html: %w", err)
	}

	text := ""
	if article, err := readability.FromReader(strings.NewReader(cleaned), pageURL); err == nil {
		var buf bytes.Buffer
		if err := article.RenderText(&buf); err == nil {
			text = strings.TrimSpace(buf.String())
		}
	}

	if len(text) < minReadableLength {
		if fallback := paragraphText(doc); len(fallback) > len(text) {
			text = fallback
		}
	}
	if text == "" {
		text = stripHTML(cleaned)
	}
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

func paragraphText(doc *goquery.Document) string {
	paragraphs := make([]string, 0)
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := normalizeWhitespace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

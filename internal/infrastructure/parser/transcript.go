package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const timedTextURL = "https://www.youtube.com/api/timedtext"

// ErrNoTranscript is returned when a video exposes no caption track.
var ErrNoTranscript = errors.New("transcript not available")

// TranscriptFetcher resolves the spoken text of a video.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// TimedTextFetcher reads caption tracks from the timedtext endpoint.
type TimedTextFetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	languages []string
	limiter   *HostRateLimiter
}

var _ TranscriptFetcher = (*TimedTextFetcher)(nil)

// NewTimedTextFetcher builds a fetcher; an empty baseURL selects the public endpoint.
func NewTimedTextFetcher(client *http.Client, baseURL, userAgent string, limiter *HostRateLimiter) *TimedTextFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = timedTextURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &TimedTextFetcher{
		client:    client,
		baseURL:   baseURL,
		userAgent: userAgent,
		languages: []string{"en", "en-US"},
		limiter:   limiter,
	}
}

// Transcript tries each preferred language and returns the first non-empty track.
func (t *TimedTextFetcher) Transcript(ctx context.Context, videoID string) (string, error) {
	if strings.TrimSpace(videoID) == "" {
		return "", fmt.Errorf("empty video id: %w", ErrNoTranscript)
	}

	var lastErr error
	for _, lang := range t.languages {
		text, err := t.fetch(ctx, videoID, lang)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("video %s: %w", videoID, lastErr)
	}
	return "", fmt.Errorf("video %s: %w", videoID, ErrNoTranscript)
}

func (t *TimedTextFetcher) fetch(ctx context.Context, videoID, lang string) (string, error) {
	endpoint, err := url.Parse(t.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid timedtext url: %w", err)
	}
	query := endpoint.Query()
	query.Set("v", videoID)
	query.Set("lang", lang)
	endpoint.RawQuery = query.Encode()

	if err := t.limiter.Wait(ctx, endpoint.String()); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("timedtext returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse transcript: %w", err)
	}

	lines := make([]string, 0)
	doc.Find("text").Each(func(_ int, s *goquery.Selection) {
		if line := normalizeWhitespace(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	return strings.Join(lines, " "), nil
}

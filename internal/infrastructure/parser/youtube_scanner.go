package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
)

const (
	youtubeFeedURL    = "https://www.youtube.com/feeds/videos.xml"
	youtubeWatchURL   = "https://www.youtube.com/watch?v="
	channelIDLength   = 24
	defaultYouTubeSrc = "YouTube"
)

// YouTubeScanner reads channel upload feeds and optionally attaches transcripts.
type YouTubeScanner struct {
	feeds       feedReader
	feedBaseURL string
	transcripts TranscriptFetcher
	logger      *slog.Logger
}

// NewYouTubeScanner wires the channel feed reader; transcripts may be nil.
func NewYouTubeScanner(client *http.Client, userAgent string, transcripts TranscriptFetcher, log *slog.Logger) *YouTubeScanner {
	return &YouTubeScanner{
		feeds:       newFeedReader(client, userAgent),
		feedBaseURL: youtubeFeedURL,
		transcripts: transcripts,
		logger:      log,
	}
}

// WithFeedBaseURL points the scanner at a different feed host.
func (y *YouTubeScanner) WithFeedBaseURL(base string) *YouTubeScanner {
	y.feedBaseURL = base
	return y
}

// Name identifies the strategy inside the registry.
func (y *YouTubeScanner) Name() string {
	return "youtube"
}

// Scan returns videos from every configured channel published inside the window.
func (y *YouTubeScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if len(req.Identifiers) == 0 {
		return nil, fmt.Errorf("no channels provided for site %s", req.SiteName)
	}

	sourceName := req.SiteName
	if sourceName == "" {
		sourceName = defaultYouTubeSrc
	}

	results := make([]domain.CandidateItem, 0)
	for _, raw := range req.Identifiers {
		channelID, ok := ExtractChannelID(raw)
		if !ok {
			y.warn("skip malformed channel id", "input", raw)
			continue
		}

		feed, err := y.feeds.read(ctx, y.channelFeedURL(channelID))
		if err != nil {
			y.warn("channel feed failed", "channel_id", channelID, "error", err)
			continue
		}

		channelName := strings.TrimSpace(feed.Title)
		if channelName == "" {
			channelName = "Unknown Channel"
		}

		for _, entry := range feed.Items {
			item, ok := y.toCandidate(ctx, req, entry, sourceName, channelID, channelName)
			if ok {
				results = append(results, item)
			}
		}
	}

	return results, nil
}

func (y *YouTubeScanner) toCandidate(ctx context.Context, req scanner.Request, entry *gofeed.Item, sourceName, channelID, channelName string) (domain.CandidateItem, bool) {
	published, ok := publishedAt(entry)
	if !ok {
		published = req.Now.UTC()
	}
	if !req.Accepts(published) {
		return domain.CandidateItem{}, false
	}

	videoID := ExtractVideoID(entry.Link)
	if videoID == "" {
		videoID = extensionValue(entry, "yt", "videoId")
	}
	if videoID == "" {
		y.warn("skip entry without video id", "link", entry.Link)
		return domain.CandidateItem{}, false
	}

	link := strings.TrimSpace(entry.Link)
	if link == "" {
		link = youtubeWatchURL + videoID
	}

	description := mediaDescription(entry)
	if description == "" {
		description = entry.Description
	}

	item := domain.CandidateItem{
		OriginID:         link,
		SourceName:       sourceName,
		Title:            titleOrDefault(entry.Title),
		ShortDescription: stripHTML(description),
		PublishedAt:      published,
		Metadata: map[string]string{
			domain.MetaVideoID:     videoID,
			domain.MetaChannelID:   channelID,
			domain.MetaChannelName: channelName,
		},
	}

	if req.IncludeContent && y.transcripts != nil {
		text, err := y.transcripts.Transcript(ctx, videoID)
		if err != nil {
			y.debug("transcript unavailable", "video_id", videoID, "error", err)
		} else {
			item.RawText = text
		}
	}

	return item, true
}

func (y *YouTubeScanner) channelFeedURL(channelID string) string {
	return y.feedBaseURL + "?" + url.Values{"channel_id": {channelID}}.Encode()
}

// ExtractChannelID accepts a bare channel id or a /channel/ URL.
func ExtractChannelID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if validChannelID(input) {
		return input, true
	}
	if !strings.Contains(input, "youtube.com/channel/") {
		return "", false
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return "", false
	}
	_, rest, found := strings.Cut(parsed.Path, "/channel/")
	if !found {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "/")
	if validChannelID(id) {
		return id, true
	}
	return "", false
}

func validChannelID(id string) bool {
	return strings.HasPrefix(id, "UC") && len(id) == channelIDLength
}

// ExtractVideoID supports watch?v=, youtu.be/ and /embed/ links.
func ExtractVideoID(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")

	switch {
	case host == "youtu.be":
		id, _, _ := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
		return id
	case strings.HasSuffix(host, "youtube.com") && parsed.Path == "/watch":
		return parsed.Query().Get("v")
	case strings.HasSuffix(host, "youtube.com") && strings.HasPrefix(parsed.Path, "/embed/"):
		id, _, _ := strings.Cut(strings.TrimPrefix(parsed.Path, "/embed/"), "/")
		return id
	}
	return ""
}

func extensionValue(entry *gofeed.Item, namespace, name string) string {
	values := entry.Extensions[namespace][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func mediaDescription(entry *gofeed.Item) string {
	groups := entry.Extensions["media"]["group"]
	if len(groups) == 0 {
		return ""
	}
	descriptions := groups[0].Children["description"]
	if len(descriptions) == 0 {
		return ""
	}
	return strings.TrimSpace(descriptions[0].Value)
}

func (y *YouTubeScanner) warn(msg string, args ...any) {
	if y.logger != nil {
		y.logger.Warn(msg, args...)
	}
}

func (y *YouTubeScanner) debug(msg string, args ...any) {
	if y.logger != nil {
		y.logger.Debug(msg, args...)
	}
}

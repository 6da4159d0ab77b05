package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const (
	DigestTitle       = "Your Daily Digest"
	EmptyTeaser       = "There's nothing new in your digest today. Check back tomorrow."
	FallbackTeaser    = "Curated based on your interests."
	EmptyDigestNotice = "Nothing new in your digest today."
	DigestFooter      = "You're receiving this because you're subscribed to the AI News Digest. Curated for you based on your interests."
)

// DigestLookup resolves a digest entry by id.
type DigestLookup func(id int64) (domain.DigestEntry, bool)

// LookupFromEntries indexes an in-memory entry set.
func LookupFromEntries(entries []domain.DigestEntry) DigestLookup {
	index := make(map[int64]domain.DigestEntry, len(entries))
	for _, e := range entries {
		index[e.ID] = e
	}
	return func(id int64) (domain.DigestEntry, bool) {
		e, ok := index[id]
		return e, ok
	}
}

// Assembler joins a ranking with entry details into a render-agnostic document.
type Assembler struct {
	generator    ports.TextGenerator
	teaserTitles int
	now          func() time.Time
	logger       *slog.Logger
}

// NewAssembler wires the teaser generator; it may be nil, in which case the fallback teaser is used.
func NewAssembler(generator ports.TextGenerator, teaserTitles int, now func() time.Time, log *slog.Logger) *Assembler {
	if teaserTitles <= 0 {
		teaserTitles = 20
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{
		generator:    generator,
		teaserTitles: teaserTitles,
		now:          now,
		logger:       loggerOrDiscard(log),
	}
}

// Assemble builds the digest document. Ranked ids the lookup cannot resolve are dropped.
func (a *Assembler) Assemble(ctx context.Context, profile domain.UserProfile, result domain.CuratorResult, lookup DigestLookup) domain.DigestDocument {
	articles := make([]domain.DigestArticle, 0, len(result.RankedEntries))
	for _, ranked := range result.RankedEntries {
		if lookup == nil {
			break
		}
		entry, ok := lookup(ranked.DigestID)
		if !ok {
			a.logger.Debug("drop unresolved digest", "digest_id", ranked.DigestID)
			continue
		}
		articles = append(articles, domain.DigestArticle{
			Rank:    len(articles) + 1,
			Title:   entry.Title,
			Summary: entry.Summary,
			URL:     entry.URL,
			Source:  entry.SourceName,
			Score:   ranked.Score,
			Reason:  ranked.RelevanceReason,
		})
	}

	date := a.now()
	return domain.DigestDocument{
		Recipient:   profile.Name,
		Date:        date,
		Title:       DigestTitle,
		Intro:       buildIntro(date, a.teaser(ctx, profile, articles), len(articles) == 0),
		Articles:    articles,
		EmptyNotice: EmptyDigestNotice,
		Footer:      DigestFooter,
	}
}

func (a *Assembler) teaser(ctx context.Context, profile domain.UserProfile, articles []domain.DigestArticle) string {
	if len(articles) == 0 {
		return EmptyTeaser
	}
	if a.generator == nil {
		return FallbackTeaser
	}

	reply, err := a.generator.Generate(ctx, ports.GenerationRequest{
		System: teaserSystemPrompt,
		User:   teaserPrompt(profile, articles, a.teaserTitles),
	})
	if err != nil {
		a.logger.Warn("teaser generation failed", "error", err)
		return FallbackTeaser
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return FallbackTeaser
	}
	return reply
}

func buildIntro(date time.Time, teaser string, empty bool) string {
	sep := ", "
	if empty {
		sep = ". "
	}
	return fmt.Sprintf("Hi there, hope you're doing well. Your daily digest is here for %s%s%s Have a good day!!",
		FormatDigestDate(date), sep, teaser)
}

// FormatDigestDate renders dates like "9th December 2025".
func FormatDigestDate(t time.Time) string {
	return fmt.Sprintf("%d%s %s", t.Day(), ordinalSuffix(t.Day()), t.Format("January 2006"))
}

func ordinalSuffix(n int) string {
	if n%100 >= 10 && n%100 <= 20 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// ComposeOptions bounds the digest candidate set.
type ComposeOptions struct {
	HoursBack     int
	FallbackHours int
	MaxItems      int
}

// Composition is a composed digest plus the counters the run report needs.
type Composition struct {
	Document      domain.DigestDocument
	WindowHours   int
	Candidates    int
	Ranked        int
	RankingFailed bool
}

// Composer selects recent digests, ranks them and assembles the document.
type Composer struct {
	digests   ports.DigestStore
	curator   *Curator
	assembler *Assembler
	opts      ComposeOptions
	now       func() time.Time
	logger    *slog.Logger
}

// NewComposer wires the composition stage. Zero options fall back to 48h, 168h and 25 items.
func NewComposer(digests ports.DigestStore, curator *Curator, assembler *Assembler, opts ComposeOptions, now func() time.Time, log *slog.Logger) *Composer {
	if opts.HoursBack <= 0 {
		opts.HoursBack = 48
	}
	if opts.FallbackHours <= 0 {
		opts.FallbackHours = 168
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 25
	}
	if now == nil {
		now = time.Now
	}
	return &Composer{
		digests:   digests,
		curator:   curator,
		assembler: assembler,
		opts:      opts,
		now:       now,
		logger:    loggerOrDiscard(log),
	}
}

// Compose builds today's digest for the profile. Only store errors are returned; ranking
// problems degrade to the placeholder document.
func (c *Composer) Compose(ctx context.Context, profile domain.UserProfile) (Composition, error) {
	now := c.now()

	window := c.opts.HoursBack
	entries, err := c.digests.RecentDigests(ctx, now.Add(-hours(window)), 0)
	if err != nil {
		return Composition{}, fmt.Errorf("load recent digests: %w", err)
	}

	if len(entries) == 0 && c.opts.FallbackHours != c.opts.HoursBack {
		window = c.opts.FallbackHours
		c.logger.Info("no digests in primary window, widening", "hours_back", c.opts.HoursBack, "fallback_hours", window)
		entries, err = c.digests.RecentDigests(ctx, now.Add(-hours(window)), 0)
		if err != nil {
			return Composition{}, fmt.Errorf("load fallback digests: %w", err)
		}
	}

	composition := Composition{WindowHours: window}
	if len(entries) == 0 {
		composition.Document = c.placeholder(ctx, profile)
		return composition, nil
	}

	if len(entries) > c.opts.MaxItems {
		entries = entries[:c.opts.MaxItems]
	}
	composition.Candidates = len(entries)

	result, err := c.curator.Rank(ctx, entries, profile)
	if err != nil {
		if !errors.Is(err, ErrRankingFailed) {
			return Composition{}, err
		}
		c.logger.Warn("ranking failed, sending placeholder digest", "error", err)
		composition.RankingFailed = true
		composition.Document = c.placeholder(ctx, profile)
		return composition, nil
	}
	if len(result.RankedEntries) == 0 {
		composition.Document = c.placeholder(ctx, profile)
		return composition, nil
	}

	composition.Ranked = len(result.RankedEntries)
	composition.Document = c.assembler.Assemble(ctx, profile, result, LookupFromEntries(entries))
	return composition, nil
}

func (c *Composer) placeholder(ctx context.Context, profile domain.UserProfile) domain.DigestDocument {
	return c.assembler.Assemble(ctx, profile, domain.CuratorResult{}, nil)
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}

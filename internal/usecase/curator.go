package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// ErrRankingFailed is returned when the backend cannot produce a valid ranking.
var ErrRankingFailed = errors.New("ranking failed")

// Curator orders digest entries by relevance to a user profile.
type Curator struct {
	generator ports.TextGenerator
	excerpt   int
	metrics   ports.Metrics
	logger    *slog.Logger
}

// NewCurator wires the generator; excerpt caps each summary in the prompt.
func NewCurator(generator ports.TextGenerator, excerpt int, metrics ports.Metrics, log *slog.Logger) *Curator {
	if excerpt <= 0 {
		excerpt = 300
	}
	return &Curator{
		generator: generator,
		excerpt:   excerpt,
		metrics:   metricsOrNoop(metrics),
		logger:    loggerOrDiscard(log),
	}
}

// Rank returns entries in a dense 1..N order. Empty input yields an empty result without a backend call.
func (c *Curator) Rank(ctx context.Context, entries []domain.DigestEntry, profile domain.UserProfile) (domain.CuratorResult, error) {
	if len(entries) == 0 {
		return domain.CuratorResult{RankedEntries: []domain.RankedEntry{}}, nil
	}
	if c.generator == nil {
		c.metrics.RankingCompleted(false, 0)
		return domain.CuratorResult{}, fmt.Errorf("%w: text generator is not configured", ErrRankingFailed)
	}

	reply, err := c.generator.Generate(ctx, ports.GenerationRequest{
		System: curatorSystemPrompt,
		User:   curatorPrompt(profile, entries, c.excerpt),
		JSON:   true,
	})
	if err != nil {
		c.metrics.RankingCompleted(false, 0)
		return domain.CuratorResult{}, fmt.Errorf("%w: %w", ErrRankingFailed, err)
	}

	result, err := ParseRanking(reply, entries)
	if err != nil {
		c.metrics.RankingCompleted(false, 0)
		return domain.CuratorResult{}, err
	}

	c.logger.Info("ranking done", "candidates", len(entries), "ranked", len(result.RankedEntries), "claimed", result.TotalProcessed)
	c.metrics.RankingCompleted(true, len(result.RankedEntries))
	return result, nil
}

type rankedCandidate struct {
	entry domain.RankedEntry
	order int
}

// ParseRanking validates a backend reply against the candidate set. Unknown ids are dropped,
// the first occurrence of a duplicate id wins, scores are clamped to [0,1] and ranks are
// renumbered densely after a stable sort on the returned rank.
func ParseRanking(reply string, entries []domain.DigestEntry) (domain.CuratorResult, error) {
	if strings.TrimSpace(reply) == "" {
		return domain.CuratorResult{}, fmt.Errorf("%w: empty reply", ErrRankingFailed)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(reply), &top); err != nil {
		return domain.CuratorResult{}, fmt.Errorf("%w: decode reply: %v", ErrRankingFailed, err)
	}

	rawList, ok := top["ranked_articles"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawList), []byte("null")) {
		return domain.CuratorResult{}, fmt.Errorf("%w: missing ranked_articles", ErrRankingFailed)
	}

	var rawEntries []map[string]json.RawMessage
	if err := json.Unmarshal(rawList, &rawEntries); err != nil {
		return domain.CuratorResult{}, fmt.Errorf("%w: ranked_articles: %v", ErrRankingFailed, err)
	}

	titles := make(map[int64]string, len(entries))
	for _, e := range entries {
		titles[e.ID] = e.Title
	}

	seen := map[int64]struct{}{}
	candidates := make([]rankedCandidate, 0, len(rawEntries))
	for i, raw := range rawEntries {
		id, err := integerField(raw, "digest_id")
		if err != nil {
			return domain.CuratorResult{}, fmt.Errorf("%w: entry %d: %v", ErrRankingFailed, i, err)
		}
		rank, err := integerField(raw, "rank")
		if err != nil {
			return domain.CuratorResult{}, fmt.Errorf("%w: entry %d: %v", ErrRankingFailed, i, err)
		}
		score, err := numberField(raw, "score")
		if err != nil {
			return domain.CuratorResult{}, fmt.Errorf("%w: entry %d: %v", ErrRankingFailed, i, err)
		}

		title, known := titles[id]
		if !known {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		candidates = append(candidates, rankedCandidate{
			entry: domain.RankedEntry{
				DigestID:        id,
				Title:           title,
				Rank:            int(rank),
				Score:           math.Min(1, math.Max(0, score)),
				RelevanceReason: optionalString(raw, "relevance_reason"),
			},
			order: i,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].entry.Rank != candidates[j].entry.Rank {
			return candidates[i].entry.Rank < candidates[j].entry.Rank
		}
		return candidates[i].order < candidates[j].order
	})

	ranked := make([]domain.RankedEntry, len(candidates))
	for i, c := range candidates {
		c.entry.Rank = i + 1
		ranked[i] = c.entry
	}

	total := len(entries)
	if n, err := integerField(top, "total_processed"); err == nil {
		total = int(n)
	}

	return domain.CuratorResult{RankedEntries: ranked, TotalProcessed: total}, nil
}

func numberField(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, fmt.Errorf("missing %s", key)
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("%s is not a number", key)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%s is not finite", key)
	}
	return value, nil
}

func integerField(fields map[string]json.RawMessage, key string) (int64, error) {
	value, err := numberField(fields, key)
	if err != nil {
		return 0, err
	}
	if value != math.Trunc(value) {
		return 0, fmt.Errorf("%s is not an integer", key)
	}
	return int64(value), nil
}

func optionalString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

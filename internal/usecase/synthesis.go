package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// SynthesisOutcome is the result of summarizing one item.
type SynthesisOutcome string

const (
	SynthesisCreated SynthesisOutcome = "created"
	SynthesisSkipped SynthesisOutcome = "skipped"
	SynthesisFailed  SynthesisOutcome = "failed"
)

// ErrInvalidSynthesis marks a backend reply that does not match the digest schema.
var ErrInvalidSynthesis = errors.New("invalid digest response")

// Synthesizer turns stored items into digest entries through the text generator.
type Synthesizer struct {
	repository ports.Repository
	generator  ports.TextGenerator
	budget     int
	metrics    ports.Metrics
	logger     *slog.Logger
}

// NewSynthesizer wires the store and the generator; budget caps the characters sent per item.
func NewSynthesizer(repo ports.Repository, generator ports.TextGenerator, budget int, metrics ports.Metrics, log *slog.Logger) *Synthesizer {
	if budget <= 0 {
		budget = 12000
	}
	return &Synthesizer{
		repository: repo,
		generator:  generator,
		budget:     budget,
		metrics:    metricsOrNoop(metrics),
		logger:     loggerOrDiscard(log),
	}
}

// Synthesize produces at most one digest entry for the item.
func (s *Synthesizer) Synthesize(ctx context.Context, item domain.CandidateItem) (domain.DigestEntry, SynthesisOutcome, error) {
	exists, err := s.repository.DigestExists(ctx, item.ID)
	if err != nil {
		return domain.DigestEntry{}, SynthesisFailed, fmt.Errorf("check digest for item %d: %w", item.ID, err)
	}
	if exists || !item.HasContent() {
		return domain.DigestEntry{}, SynthesisSkipped, nil
	}
	if s.generator == nil {
		return domain.DigestEntry{}, SynthesisFailed, errors.New("text generator is not configured")
	}

	content := truncateContent(item.SummaryInput(), s.budget)
	reply, err := s.generator.Generate(ctx, ports.GenerationRequest{
		System: synthesisSystemPrompt,
		User:   synthesisPrompt(item, content),
		JSON:   true,
	})
	if err != nil {
		return domain.DigestEntry{}, SynthesisFailed, fmt.Errorf("generate digest for item %d: %w", item.ID, err)
	}

	title, summary, err := parseSynthesis(reply)
	if err != nil {
		return domain.DigestEntry{}, SynthesisFailed, fmt.Errorf("item %d: %w", item.ID, err)
	}

	entry, outcome, err := s.repository.SaveDigest(ctx, domain.DigestEntry{
		SourceItemID: item.ID,
		Title:        title,
		Summary:      summary,
		URL:          item.OriginID,
		SourceName:   item.SourceName,
	})
	if err != nil {
		return domain.DigestEntry{}, SynthesisFailed, fmt.Errorf("save digest for item %d: %w", item.ID, err)
	}
	if outcome == domain.OutcomeAlreadyExists {
		return domain.DigestEntry{}, SynthesisSkipped, nil
	}
	return entry, SynthesisCreated, nil
}

// SynthesizeAll processes every stored item newest first. A non-positive limit means all items.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, limit int) (domain.SynthesisStats, error) {
	var stats domain.SynthesisStats

	items, err := s.repository.AllItems(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("list items: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Processed++
		_, outcome, err := s.Synthesize(ctx, item)
		switch outcome {
		case SynthesisCreated:
			stats.Created++
		case SynthesisSkipped:
			stats.Skipped++
		default:
			stats.Failed++
			s.logger.Warn("digest synthesis failed", "item_id", item.ID, "origin_id", item.OriginID, "error", err)
		}
		s.metrics.DigestSynthesized(string(outcome))
	}

	s.logger.Info("digest synthesis done",
		"processed", stats.Processed,
		"created", stats.Created,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

func parseSynthesis(reply string) (string, string, error) {
	if strings.TrimSpace(reply) == "" {
		return "", "", fmt.Errorf("%w: empty reply", ErrInvalidSynthesis)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(reply), &fields); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSynthesis, err)
	}

	title, err := requiredString(fields, "digest_title")
	if err != nil {
		return "", "", err
	}
	summary, err := requiredString(fields, "summary")
	if err != nil {
		return "", "", err
	}
	return title, summary, nil
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidSynthesis, key)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrInvalidSynthesis, key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: empty %s", ErrInvalidSynthesis, key)
	}
	return value, nil
}

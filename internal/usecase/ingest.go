package usecase

import (
	"context"
	"log/slog"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Ingestor persists scraped items through the dedup store.
type Ingestor struct {
	store   ports.ItemStore
	metrics ports.Metrics
	logger  *slog.Logger
}

// NewIngestor wires the item store.
func NewIngestor(store ports.ItemStore, metrics ports.Metrics, log *slog.Logger) *Ingestor {
	return &Ingestor{store: store, metrics: metricsOrNoop(metrics), logger: loggerOrDiscard(log)}
}

// Ingest stores every item; failures are counted and the batch continues.
func (i *Ingestor) Ingest(ctx context.Context, items []domain.CandidateItem) domain.IngestStats {
	var stats domain.IngestStats
	for _, item := range items {
		stats.Seen++

		outcome, err := i.store.IngestItem(ctx, item)
		if err != nil {
			stats.Failed++
			i.logger.Warn("ingest item failed", "origin_id", item.OriginID, "source", item.SourceName, "error", err)
			continue
		}

		switch outcome {
		case domain.OutcomeCreated:
			stats.Created++
		case domain.OutcomeAlreadyExists:
			stats.Existing++
		}
		i.metrics.ItemIngested(item.SourceName, outcome)
	}

	i.logger.Info("ingest done", "seen", stats.Seen, "created", stats.Created, "existing", stats.Existing, "failed", stats.Failed)
	return stats
}

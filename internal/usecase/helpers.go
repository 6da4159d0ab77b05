package usecase

import (
	"log/slog"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
)

type noopMetrics struct{}

func (noopMetrics) ItemIngested(string, domain.IngestOutcome) {}
func (noopMetrics) DigestSynthesized(string) {}
func (noopMetrics) RankingCompleted(bool, int) {}
func (noopMetrics) RunFinished(domain.RunReport) {}

func metricsOrNoop(m ports.Metrics) ports.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func loggerOrDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return logging.Discard()
	}
	return log
}

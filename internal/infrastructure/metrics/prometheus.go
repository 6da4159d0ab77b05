// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const namespace = "newsdigest"

// Prometheus records pipeline activity on a dedicated registerer.
type Prometheus struct {
	itemsIngested   *prometheus.CounterVec
	digests         *prometheus.CounterVec
	rankings        *prometheus.CounterVec
	rankedEntries   prometheus.Histogram
	runs            prometheus.Counter
	runDuration     prometheus.Histogram
	lastRunUnix     prometheus.Gauge
	lastRunArticles prometheus.Gauge
}

var _ ports.Metrics = (*Prometheus)(nil)

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		itemsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_ingested_total",
				Help:      "Candidate items offered to the store by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		digests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "digests_synthesized_total",
				Help:      "Digest synthesis attempts by outcome",
			},
			[]string{"outcome"},
		),
		rankings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rankings_total",
				Help:      "Curator ranking calls by success",
			},
			[]string{"success"},
		),
		rankedEntries: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranked_entries",
			Help:      "Distribution of ranked entries per successful ranking",
			Buckets:   []float64{0, 1, 5, 10, 15, 20, 25, 50},
		}),
		runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		lastRunUnix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last pipeline run finished",
		}),
		lastRunArticles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_ranked_articles",
			Help:      "Articles in the last delivered digest",
		}),
	}
}

// ItemIngested counts one store outcome.
func (p *Prometheus) ItemIngested(source string, outcome domain.IngestOutcome) {
	p.itemsIngested.WithLabelValues(source, string(outcome)).Inc()
}

// DigestSynthesized counts one synthesis attempt.
func (p *Prometheus) DigestSynthesized(outcome string) {
	p.digests.WithLabelValues(outcome).Inc()
}

// RankingCompleted counts one curator call.
func (p *Prometheus) RankingCompleted(success bool, ranked int) {
	p.rankings.WithLabelValues(strconv.FormatBool(success)).Inc()
	if success {
		p.rankedEntries.Observe(float64(ranked))
	}
}

// RunFinished records the run report.
func (p *Prometheus) RunFinished(report domain.RunReport) {
	p.runs.Inc()
	if !report.FinishedAt.IsZero() {
		p.runDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
		p.lastRunUnix.Set(float64(report.FinishedAt.Unix()))
	}
	p.lastRunArticles.Set(float64(report.Ranked))
}

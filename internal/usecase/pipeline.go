package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.ItemSource
	Repository   ports.Repository
	Synthesizer  *Synthesizer
	Composer     *Composer
	Renderer     ports.DigestRenderer
	Mailer       ports.Mailer
	Notifier     ports.Notifier
	Metrics      ports.Metrics
	Profile      domain.UserProfile
	ScrapeWindow time.Duration
	Now          func() time.Time
	Logger       *slog.Logger
}

// Pipeline implements the scrape, ingest, synthesize, compose and deliver workflow.
type Pipeline struct {
	source       ports.ItemSource
	ingestor     *Ingestor
	synthesizer  *Synthesizer
	composer     *Composer
	renderer     ports.DigestRenderer
	mailer       ports.Mailer
	notifier     ports.Notifier
	metrics      ports.Metrics
	profile      domain.UserProfile
	scrapeWindow time.Duration
	now          func() time.Time
	logger       *slog.Logger

	running sync.Mutex
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	window := deps.ScrapeWindow
	if window <= 0 {
		window = 500 * time.Hour
	}
	logger := loggerOrDiscard(deps.Logger)
	metrics := metricsOrNoop(deps.Metrics)

	var ingestor *Ingestor
	if deps.Repository != nil {
		ingestor = NewIngestor(deps.Repository, metrics, logger)
	}

	return &Pipeline{
		source:       deps.Source,
		ingestor:     ingestor,
		synthesizer:  deps.Synthesizer,
		composer:     deps.Composer,
		renderer:     deps.Renderer,
		mailer:       deps.Mailer,
		notifier:     deps.Notifier,
		metrics:      metrics,
		profile:      deps.Profile,
		scrapeWindow: window,
		now:          now,
		logger:       logger,
	}
}

// Run executes one full batch. Stage failures are logged and degrade the run; only an
// overlapping run is rejected.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	if !p.running.TryLock() {
		return domain.RunReport{}, ErrRunInProgress
	}
	defer p.running.Unlock()

	report := domain.RunReport{RunID: uuid.NewString(), StartedAt: p.now()}
	log := p.logger.With("run_id", report.RunID)
	log.Info("pipeline run started", "scrape_window", p.scrapeWindow.String())

	scraped, ingest, err := p.scrape(ctx, log)
	if err != nil {
		log.Error("scrape stage failed", "error", err)
	}
	report.Scraped = scraped
	report.Ingest = ingest

	if p.synthesizer != nil {
		stats, err := p.synthesizer.SynthesizeAll(ctx, 0)
		if err != nil {
			log.Error("synthesis stage failed", "error", err)
		}
		report.Synthesis = stats
	}

	if p.composer != nil {
		composition, err := p.composer.Compose(ctx, p.profile)
		if err != nil {
			log.Error("compose stage failed", "error", err)
		} else {
			report.Candidates = composition.Candidates
			report.Ranked = composition.Ranked
			report.RankingFailed = composition.RankingFailed
			report.Mailed, report.Notified = p.deliver(ctx, log, composition.Document)
		}
	}

	report.FinishedAt = p.now()
	p.metrics.RunFinished(report)
	log.Info("pipeline run finished",
		"scraped", report.Scraped,
		"ingested", report.Ingest.Created,
		"digests", report.Synthesis.Created,
		"ranked", report.Ranked,
		"ranking_failed", report.RankingFailed,
		"mailed", report.Mailed,
		"notified", report.Notified,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	return report, ctx.Err()
}

// Scrape fetches and ingests items without summarizing them.
func (p *Pipeline) Scrape(ctx context.Context) (int, domain.IngestStats, error) {
	return p.scrape(ctx, p.logger)
}

// Summarize synthesizes digests for stored items.
func (p *Pipeline) Summarize(ctx context.Context, limit int) (domain.SynthesisStats, error) {
	if p.synthesizer == nil {
		return domain.SynthesisStats{}, errors.New("synthesizer is not configured")
	}
	return p.synthesizer.SynthesizeAll(ctx, limit)
}

// Compose builds today's digest without delivering it.
func (p *Pipeline) Compose(ctx context.Context) (Composition, error) {
	if p.composer == nil {
		return Composition{}, errors.New("composer is not configured")
	}
	return p.composer.Compose(ctx, p.profile)
}

func (p *Pipeline) scrape(ctx context.Context, log *slog.Logger) (int, domain.IngestStats, error) {
	if p.source == nil || p.ingestor == nil {
		return 0, domain.IngestStats{}, nil
	}

	items, err := p.source.Fetch(ctx, p.now(), p.scrapeWindow)
	if err != nil {
		return 0, domain.IngestStats{}, fmt.Errorf("fetch items: %w", err)
	}
	log.Info("scrape done", "items", len(items))

	return len(items), p.ingestor.Ingest(ctx, items), nil
}

func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, doc domain.DigestDocument) (bool, bool) {
	if p.renderer == nil {
		return false, false
	}

	var mailed, notified bool
	if p.mailer != nil && p.profile.Email != "" {
		html, err := p.renderer.RenderHTML(doc)
		if err != nil {
			log.Error("render html digest failed", "error", err)
		} else {
			err = p.mailer.Send(ctx, ports.MailMessage{
				To:      p.profile.Email,
				Subject: MailSubject(p.profile),
				HTML:    html,
				Text:    p.renderer.RenderText(doc),
			})
			if err != nil {
				log.Error("send digest email failed", "error", err)
			} else {
				mailed = true
				log.Info("digest email sent", "recipient", p.profile.Email, "articles", len(doc.Articles))
			}
		}
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, p.renderer.RenderText(doc)); err != nil {
			log.Error("publish digest failed", "error", err)
		} else {
			notified = true
		}
	}

	return mailed, notified
}

// MailSubject is the subject line of the digest email.
func MailSubject(profile domain.UserProfile) string {
	return "Your Daily Digest - " + profile.Name
}

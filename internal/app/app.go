package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/httpserver"
	"NewsDigest/internal/infrastructure/llm"
	"NewsDigest/internal/infrastructure/mailer"
	"NewsDigest/internal/infrastructure/metrics"
	"NewsDigest/internal/infrastructure/parser"
	"NewsDigest/internal/infrastructure/render"
	"NewsDigest/internal/infrastructure/scheduler"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/infrastructure/telegram"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/scanner"
	"NewsDigest/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	renderer  *render.Renderer
	scheduler *usecase.Scheduler
	registry  *prometheus.Registry
	pool      *pgxpool.Pool
}

// New builds the application. Only a broken store connection is fatal; every other
// misconfigured collaborator is logged and disabled.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	component := func(name string) *slog.Logger { return baseLogger.With("component", name) }

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	repo, pool, err := openRepository(ctx, cfg.Database, component("storage"))
	if err != nil {
		return nil, err
	}

	var generator ports.TextGenerator
	if client, err := llm.NewChatClient(cfg.LLM); err != nil {
		component("llm").Warn("text generation disabled", "error", err)
	} else {
		generator = client
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	location := cfg.Scheduler.Location()
	now := func() time.Time { return time.Now().In(location) }

	synthesizer := usecase.NewSynthesizer(repo, generator, cfg.Digest.ContentBudget, recorder, component("synthesis"))
	curator := usecase.NewCurator(generator, cfg.Digest.ExcerptChars, recorder, component("curator"))
	assembler := usecase.NewAssembler(generator, cfg.Digest.TeaserTitles, now, component("assembly"))
	composer := usecase.NewComposer(repo, curator, assembler, usecase.ComposeOptions{
		HoursBack:     cfg.Digest.HoursBack,
		FallbackHours: cfg.Digest.FallbackHours,
		MaxItems:      cfg.Digest.MaxItems,
	}, now, component("compose"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       buildSource(cfg, component),
		Repository:   repo,
		Synthesizer:  synthesizer,
		Composer:     composer,
		Renderer:     renderer,
		Mailer:       buildMailer(cfg.Notifications.Mail, component("mailer")),
		Notifier:     buildNotifier(cfg.Notifications.Telegram, component("telegram")),
		Metrics:      recorder,
		Profile:      cfg.Profile,
		ScrapeWindow: time.Duration(cfg.Scrape.HoursBack) * time.Hour,
		Now:          now,
		Logger:       component("pipeline"),
	})

	trigger := scheduler.NewDailyTrigger(scheduler.DailyConfig{
		Location:      location,
		Hour:          cfg.Scheduler.Hour,
		Minute:        cfg.Scheduler.Minute,
		CheckInterval: cfg.Scheduler.CheckInterval,
		RunOnStartup:  cfg.Scheduler.RunOnStartup,
	}, component("trigger"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		renderer:  renderer,
		scheduler: usecase.NewScheduler(trigger, pipeline, component("scheduler")),
		registry:  registry,
		pool:      pool,
	}, nil
}

// Pipeline exposes the orchestration use case for one-shot commands.
func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

// RenderText renders a composed digest for the console.
func (a *Application) RenderText(doc domain.DigestDocument) string {
	return a.renderer.RenderText(doc)
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (domain.RunReport, error) {
	return a.pipeline.Run(ctx)
}

// Serve starts the daily trigger and, when a port is configured, the health server.
// It blocks until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Port != "" {
		srv := httpserver.New(":"+a.cfg.Server.Port, a.registry, a.logger.With("component", "http"))
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("shutdown health server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.scheduler.Stop(stopCtx)
	})

	a.logger.Info("service started",
		"timezone", a.cfg.Scheduler.Location().String(),
		"at", fmt.Sprintf("%02d:%02d", a.cfg.Scheduler.Hour, a.cfg.Scheduler.Minute),
		"port", a.cfg.Server.Port,
	)
	err := g.Wait()
	a.logger.Info("service stopped")
	return err
}

// Close releases the database pool.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// Migrate applies the schema to the configured database.
func Migrate(ctx context.Context, cfg config.Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database dsn is not configured")
	}
	pool, err := storage.NewPool(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return storage.Migrate(ctx, pool)
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (ports.Repository, *pgxpool.Pool, error) {
	if cfg.DSN == "" {
		log.Warn("no database configured, using in-memory store")
		return storage.NewMemoryRepository(), nil, nil
	}

	pool, err := storage.NewPool(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("postgres store ready", "max_conns", cfg.MaxConns)
	return storage.NewPostgresRepository(pool), pool, nil
}

func buildSource(cfg config.Config, component func(string) *slog.Logger) ports.ItemSource {
	client := &http.Client{Timeout: cfg.Scrape.RequestTimeout}
	limiter := parser.NewHostRateLimiter(cfg.Scrape.HostInterval)
	ua := cfg.Scrape.UserAgent

	extractor := parser.NewReadabilityExtractor(client, ua, limiter)
	transcripts := parser.NewTimedTextFetcher(client, "", ua, limiter)

	registry := scanner.NewRegistry(
		parser.NewYouTubeScanner(client, ua, transcripts, component("scanner.youtube")),
		parser.NewBlogScanner(client, ua, extractor, component("scanner.blog")),
		parser.NewMultiFeedScanner(client, ua, extractor, cfg.Scrape.FeedWorkers, component("scanner.multifeed")),
		parser.NewArxivScanner(client, component("scanner.arxiv")),
	)

	return parser.NewStrategySource(registry, cfg.EnabledSites(), !cfg.Scrape.SkipContent, component("source"))
}

func buildMailer(cfg config.MailConfig, log *slog.Logger) ports.Mailer {
	m, err := mailer.NewSMTPMailer(cfg, log)
	if err != nil {
		log.Warn("email delivery disabled", "error", err)
		return nil
	}
	return m
}

func buildNotifier(cfg config.TelegramConfig, log *slog.Logger) ports.Notifier {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		log.Info("telegram delivery disabled")
		return nil
	}
	return telegram.NewNotifier(cfg.BotToken, cfg.ChatID)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"NewsDigest/internal/app"
	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "newsdigest",
		Short:         "Scrape AI news, summarize it and deliver a ranked daily digest",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (overrides NEWSDIGEST_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error, prefix json: for JSON output")

	cmd.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newScrapeCommand(opts),
		newSummarizeCommand(opts),
		newDigestCommand(opts),
		newMigrateCommand(opts),
	)
	return cmd
}

// load reads the --config file when given; otherwise NEWSDIGEST_CONFIG is consulted.
func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	var cfg config.Config
	if o.configPath != "" {
		loaded, err := config.LoadFrom(o.configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Load()
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, logging.New(cfg.Logging.Level), nil
}

func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, application *app.Application) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return fn(ctx, application)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily trigger and the health server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				return application.Serve(ctx)
			})
		},
	}
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one full scrape, summarize, compose and deliver pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				report, err := application.Run(ctx)
				printReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func newScrapeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Fetch configured sources and store new items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				scraped, stats, err := application.Pipeline().Scrape(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scraped %d items: %d new, %d existing, %d failed\n",
					scraped, stats.Created, stats.Existing, stats.Failed)
				return nil
			})
		},
	}
}

func newSummarizeCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate digests for stored items that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				stats, err := application.Pipeline().Summarize(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d items: %d created, %d skipped, %d failed\n",
					stats.Processed, stats.Created, stats.Skipped, stats.Failed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items to process (0 = all)")
	return cmd
}

func newDigestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Compose today's digest and print it without delivering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, application *app.Application) error {
				composition, err := application.Pipeline().Compose(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), application.RenderText(composition.Document))
				return nil
			})
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if err := app.Migrate(cmd.Context(), cfg); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}

func printReport(w io.Writer, report domain.RunReport) {
	fmt.Fprintf(w, "run %s\n", report.RunID)
	fmt.Fprintf(w, "  scraped:    %d (new %d, existing %d, failed %d)\n",
		report.Scraped, report.Ingest.Created, report.Ingest.Existing, report.Ingest.Failed)
	fmt.Fprintf(w, "  digests:    %d created, %d skipped, %d failed\n",
		report.Synthesis.Created, report.Synthesis.Skipped, report.Synthesis.Failed)
	fmt.Fprintf(w, "  candidates: %d, ranked: %d, ranking failed: %t\n",
		report.Candidates, report.Ranked, report.RankingFailed)
	fmt.Fprintf(w, "  delivered:  mail %t, telegram %t\n", report.Mailed, report.Notified)
}

package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/scanner"
)

// StrategySource implements ItemSource via registered scanner strategies.
type StrategySource struct {
	registry       *scanner.Registry
	sites          []config.SiteConfig
	includeContent bool
	logger         *slog.Logger
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, includeContent bool, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:       reg,
		sites:          sites,
		includeContent: includeContent,
		logger:         log,
	}
}

// Fetch iterates over configured sites and executes their scanners. A failing site is
// logged and skipped so the remaining sites still contribute.
func (s *StrategySource) Fetch(ctx context.Context, now time.Time, window time.Duration) ([]domain.CandidateItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch sources", "sites", len(s.sites), "window", window.String(), "scanners", s.registry.Names())

	var aggregated []domain.CandidateItem
	for _, site := range s.sites {
		if err := ctx.Err(); err != nil {
			return aggregated, err
		}

		s.debug("process site", "site", site.Name, "scanner", site.Scanner, "categories", len(site.Categories))
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			s.warn("skip site", "site", site.Name, "error", err, "registered", strings.Join(s.registry.Names(), ","))
			continue
		}

		req := scanner.Request{
			Now:            now,
			Window:         window,
			SiteName:       site.Name,
			Identifiers:    site.Identifiers,
			Categories:     toScannerCategories(site.Categories),
			Options:        site.Options,
			IncludeContent: s.includeContent,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			s.warn("scan site failed", "site", site.Name, "error", err)
			continue
		}

		for i := range results {
			if results[i].SourceName == "" {
				results[i].SourceName = site.Name
			}
		}
		s.debug("site produced items", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "total_items", len(aggregated))
	return aggregated, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"NewsDigest/internal/domain"
)

// Category describes a concrete endpoint provided by config (feed URL, listing URL).
type Category struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Now            time.Time
	Window         time.Duration
	SiteName       string
	Identifiers    []string
	Categories     []Category
	Options        map[string]string
	IncludeContent bool
}

// Cutoff is the oldest publish time a scanner may return.
func (r Request) Cutoff() time.Time {
	return r.Now.Add(-r.Window)
}

// Accepts reports whether a publish time falls inside the lookback window.
func (r Request) Accepts(publishedAt time.Time) bool {
	return !publishedAt.Before(r.Cutoff())
}

// Scanner captures a single source strategy (YouTube, blog feed, arXiv, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.CandidateItem, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds a registry pre-populated with the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[string]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanners in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package ports

import (
	"context"
	"time"

	"NewsDigest/internal/domain"
)

// ItemSource pulls fresh candidate items from every configured upstream.
type ItemSource interface {
	Fetch(ctx context.Context, now time.Time, window time.Duration) ([]domain.CandidateItem, error)
}

// ItemStore persists candidate items; OriginID is the only dedup key.
type ItemStore interface {
	IngestItem(ctx context.Context, item domain.CandidateItem) (domain.IngestOutcome, error)
	ItemsBySource(ctx context.Context, source string, limit int) ([]domain.CandidateItem, error)
	RecentItems(ctx context.Context, since time.Time, limit int) ([]domain.CandidateItem, error)
	AllItems(ctx context.Context, limit int) ([]domain.CandidateItem, error)
	CountBySource(ctx context.Context, source string) (int, error)
}

// DigestStore persists at most one digest entry per item.
type DigestStore interface {
	DigestExists(ctx context.Context, itemID int64) (bool, error)
	SaveDigest(ctx context.Context, entry domain.DigestEntry) (domain.DigestEntry, domain.IngestOutcome, error)
	DigestByID(ctx context.Context, id int64) (domain.DigestEntry, bool, error)
	RecentDigests(ctx context.Context, since time.Time, limit int) ([]domain.DigestEntry, error)
	AllDigests(ctx context.Context, limit int) ([]domain.DigestEntry, error)
}

// Repository is the full persistence surface used by the pipeline.
type Repository interface {
	ItemStore
	DigestStore
}

// GenerationRequest is one call to the text-generation backend.
type GenerationRequest struct {
	System string
	User   string
	JSON   bool
}

// TextGenerator talks to an LLM chat backend (OpenAI-compatible).
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// DigestRenderer turns an assembled digest into wire formats.
type DigestRenderer interface {
	RenderHTML(doc domain.DigestDocument) (string, error)
	RenderText(doc domain.DigestDocument) string
}

// MailMessage is an outbound digest email.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers rendered digests by email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// Notifier streams the plain-text digest to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Metrics records pipeline counters. Implementations must be safe for concurrent use.
type Metrics interface {
	ItemIngested(source string, outcome domain.IngestOutcome)
	DigestSynthesized(outcome string)
	RankingCompleted(success bool, ranked int)
	RunFinished(report domain.RunReport)
}

package domain

import (
	"strings"
	"time"
)

// CandidateItem is a unit of ingested content normalized by a source adapter.
type CandidateItem struct {
	ID               int64
	OriginID         string
	SourceName       string
	Title            string
	RawText          string
	ShortDescription string
	PublishedAt      time.Time
	ScrapedAt        time.Time
	Metadata         map[string]string
}

// Metadata keys written by the source adapters.
const (
	MetaVideoID     = "video_id"
	MetaChannelID   = "channel_id"
	MetaChannelName = "channel_name"
	MetaCategory    = "category"
	MetaFeed        = "feed"
)

// SummaryInput returns the text handed to the summarizer: the raw text when present,
// otherwise the short description.
func (c CandidateItem) SummaryInput() string {
	if strings.TrimSpace(c.RawText) != "" {
		return c.RawText
	}
	return c.ShortDescription
}

// HasContent reports whether the item carries any text worth summarizing.
func (c CandidateItem) HasContent() bool {
	return strings.TrimSpace(c.SummaryInput()) != ""
}

// IngestOutcome enumerates results of an idempotent insert.
type IngestOutcome string

const (
	OutcomeCreated       IngestOutcome = "created"
	OutcomeAlreadyExists IngestOutcome = "already_exists"
)

package domain

import "time"

// DigestEntry is the short generated summary of exactly one CandidateItem.
type DigestEntry struct {
	ID           int64
	SourceItemID int64
	Title        string
	Summary      string
	URL          string
	SourceName   string
	CreatedAt    time.Time
}

// UserProfile drives curation. It is supplied per run and never persisted.
type UserProfile struct {
	Name          string   `yaml:"name"`
	Email         string   `yaml:"email"`
	Interests     []string `yaml:"interests"`
	FocusAreas    []string `yaml:"focusAreas"`
	ExcludeTopics []string `yaml:"excludeTopics"`
}

// RankedEntry is one digest entry placed by the curator.
type RankedEntry struct {
	DigestID        int64
	Title           string
	Rank            int
	Score           float64
	RelevanceReason string
}

// CuratorResult holds ranked entries ordered by rank ascending.
type CuratorResult struct {
	RankedEntries  []RankedEntry
	TotalProcessed int
}

// DigestArticle is a fully resolved block of the rendered digest.
type DigestArticle struct {
	Rank    int
	Title   string
	Summary string
	URL     string
	Source  string
	Score   float64
	Reason  string
}

// DigestDocument is the render-agnostic digest produced by assembly.
type DigestDocument struct {
	Recipient   string
	Date        time.Time
	Title       string
	Intro       string
	Articles    []DigestArticle
	EmptyNotice string
	Footer      string
}

// Empty reports whether the document carries no articles.
func (d DigestDocument) Empty() bool {
	return len(d.Articles) == 0
}

package domain

import "time"

// IngestStats aggregates one ingestion pass.
type IngestStats struct {
	Seen     int
	Created  int
	Existing int
	Failed   int
}

// SynthesisStats aggregates one digest synthesis pass.
type SynthesisStats struct {
	Processed int
	Created   int
	Skipped   int
	Failed    int
}

// RunReport summarizes a full pipeline execution.
type RunReport struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Scraped       int
	Ingest        IngestStats
	Synthesis     SynthesisStats
	Candidates    int
	Ranked        int
	RankingFailed bool
	Mailed        bool
	Notified      bool
}

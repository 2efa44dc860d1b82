package domain

import "time"

// Stage names one step of the pipeline. Stage names key persisted results.
type Stage string

const (
	StageDiscovery         Stage = "discovery"
	StageAnalysis          Stage = "analysis"
	StageRetrievalPreviews Stage = "retrieval_previews"
	StageRetrieval         Stage = "retrieval"
	StageNormalization     Stage = "normalization"
	StageIntegration       Stage = "integration"

	// StagePublish labels the payload hand-off to the mapping service.
	// It attributes delivery failures; no stage result is persisted under it.
	StagePublish Stage = "publish"
)

// SchemaVersion is stamped on every persisted stage result envelope.
const SchemaVersion = 1

// StageResult is one persisted stage output plus its metadata envelope.
type StageResult struct {
	ID            int64     `db:"id"`
	Stage         Stage     `db:"stage"`
	EventSlug     string    `db:"event_slug"`
	SchemaVersion int       `db:"schema_version"`
	GeneratedAt   time.Time `db:"generated_at"`
	Output        []byte    `db:"output"`
}

// RunState tracks how far a pipeline run for one event has progressed.
type RunState struct {
	ID          int64     `db:"id"`
	EventSlug   string    `db:"event_slug"`
	EventName   string    `db:"event_name"`
	LastStage   Stage     `db:"last_stage"`
	Completed   bool      `db:"completed"`
	StageWrites int64     `db:"stage_writes"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// RunStats holds counters for a single pipeline run.
type RunStats struct {
	EventName string
	Queries   int
	Previews  int
	Details   int
	Confirmed int
	Declined  int
	Geocoded  int
	Published int
	Duration  time.Duration
}

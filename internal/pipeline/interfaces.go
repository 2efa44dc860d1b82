package pipeline

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"event_explorer/internal/domain"
)

// TrendingSource supplies raw news articles for the discovery digest.
type TrendingSource interface {
	ID() string
	Name() string
	FetchEvents(ctx context.Context, count int) ([]domain.TrendingEvent, error)
}

// Reasoner is the black-box language-model collaborator. Responses may be
// structurally non-conformant; callers must validate before use.
type Reasoner interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ContentSource retrieves content items for a category query at preview or
// detail fidelity.
type ContentSource interface {
	FetchPreview(ctx context.Context, query domain.SearchQuery, limit int) ([]domain.ContentItem, error)
	FetchDetail(ctx context.Context, query domain.SearchQuery, limit int) ([]domain.ContentItem, error)
}

// Geocoder resolves free-form location text to a coordinate. No match is
// (nil, nil), not an error.
type Geocoder interface {
	Resolve(ctx context.Context, location string) (*domain.GeoCoordinate, error)
}

// Checkpoint presents a preview and blocks until a decision. Implementations
// must honor ctx cancellation rather than wait indefinitely.
type Checkpoint interface {
	Confirm(ctx context.Context, preview domain.CheckpointPreview) (bool, error)
}

// ResultStore persists stage outputs under (stage, event slug, timestamp).
type ResultStore interface {
	SaveStageResult(ctx context.Context, result *domain.StageResult) error
	LatestStageResult(ctx context.Context, stage domain.Stage, eventSlug string) (*domain.StageResult, error)
}

// RunStateStore tracks per-event run progress.
type RunStateStore interface {
	GetRunState(ctx context.Context, eventSlug string) (*domain.RunState, error)
	UpdateRunState(ctx context.Context, state *domain.RunState) error
}

// Publisher hands the final payload to the mapping ingestion service.
type Publisher interface {
	PublishPayload(ctx context.Context, payload *domain.Payload) error
	Close() error
}

// TransactionManager scopes a stage-result write and its run-state update
// to one transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

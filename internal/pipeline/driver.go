package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"event_explorer/internal/domain"
)

// DiscoverySlug keys persisted discovery output, which precedes any event
// selection and so has no event of its own.
const DiscoverySlug = "trending"

// Driver sequences the pipeline stages, persisting every stage output
// before advancing so a failed or suspended run resumes from its last
// completed stage instead of restarting.
type Driver struct {
	discovery   *Discovery
	analysis    *Analysis
	retrieval   *Retrieval
	normalizer  *Normalizer
	integration *Integration
	store       ResultStore
	runs        RunStateStore
	txManager   TransactionManager
	publisher   Publisher
	logger      *slog.Logger
}

func NewDriver(
	discovery *Discovery,
	analysis *Analysis,
	retrieval *Retrieval,
	normalizer *Normalizer,
	integration *Integration,
	store ResultStore,
	runs RunStateStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
) *Driver {
	return &Driver{
		discovery:   discovery,
		analysis:    analysis,
		retrieval:   retrieval,
		normalizer:  normalizer,
		integration: integration,
		store:       store,
		runs:        runs,
		txManager:   txManager,
		publisher:   publisher,
		logger:      logger.With("component", "driver"),
	}
}

// Discover runs the discovery stage and persists the candidate list.
func (d *Driver) Discover(ctx context.Context) ([]domain.TrendingEvent, error) {
	events, err := d.discovery.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.persist(ctx, domain.StageDiscovery, DiscoverySlug, "", events); err != nil {
		return nil, err
	}
	return events, nil
}

// Run executes the pipeline for one selected event. With a nil checkpoint
// the run suspends after persisting its previews and returns
// ErrAwaitingConfirmation; Resume finishes it with caller-supplied
// decisions. Previously completed stage outputs stay in the store either
// way.
func (d *Driver) Run(ctx context.Context, event domain.TrendingEvent, checkpoint Checkpoint) (*domain.Payload, *domain.RunStats, error) {
	start := time.Now()
	slug := domain.Slugify(event.Title)

	d.logger.Info("starting run", "event", event.Title, "slug", slug)

	analysis, err := d.analysis.Run(ctx, event)
	if err != nil {
		return nil, nil, err
	}
	if err := d.persist(ctx, domain.StageAnalysis, slug, event.Title, analysis); err != nil {
		return nil, nil, err
	}

	previews := d.retrieval.FetchPreviews(ctx, analysis)
	if err := d.persist(ctx, domain.StageRetrievalPreviews, slug, event.Title, previews); err != nil {
		return nil, nil, err
	}

	if checkpoint == nil {
		d.logger.Info("run suspended at checkpoint", "slug", slug)
		return nil, nil, fmt.Errorf("run %s: %w", slug, domain.ErrAwaitingConfirmation)
	}

	return d.finish(ctx, slug, analysis, previews, checkpoint, start)
}

// Resume finishes a run that suspended at the retrieval checkpoint, using
// the persisted analysis and previews plus the supplied decisions.
func (d *Driver) Resume(ctx context.Context, slug string, decisions Decisions) (*domain.Payload, *domain.RunStats, error) {
	var analysis domain.EventAnalysis
	if err := d.loadStage(ctx, domain.StageAnalysis, slug, &analysis); err != nil {
		return nil, nil, err
	}

	var previews domain.RetrievalResult
	if err := d.loadStage(ctx, domain.StageRetrievalPreviews, slug, &previews); err != nil {
		return nil, nil, err
	}

	d.logger.Info("resuming run", "slug", slug)

	return d.finish(ctx, slug, &analysis, &previews, decisions, time.Now())
}

func (d *Driver) finish(ctx context.Context, slug string, analysis *domain.EventAnalysis, previews *domain.RetrievalResult, checkpoint Checkpoint, start time.Time) (*domain.Payload, *domain.RunStats, error) {
	retrieved, err := d.retrieval.ConfirmAndFetch(ctx, analysis, previews, checkpoint)
	if err != nil {
		return nil, nil, err
	}
	if err := d.persist(ctx, domain.StageRetrieval, slug, retrieved.EventName, retrieved); err != nil {
		return nil, nil, err
	}

	normalized := d.normalizer.Run(retrieved)
	if err := d.persist(ctx, domain.StageNormalization, slug, retrieved.EventName, normalized); err != nil {
		return nil, nil, err
	}

	payload, err := d.integration.Run(ctx, normalized)
	if err != nil {
		return nil, nil, err
	}
	if err := d.persist(ctx, domain.StageIntegration, slug, retrieved.EventName, payload); err != nil {
		return nil, nil, err
	}

	stats := buildStats(analysis, retrieved, payload)

	if d.publisher != nil {
		if err := d.publisher.PublishPayload(ctx, payload); err != nil {
			return nil, nil, &domain.StageError{Stage: domain.StagePublish, Err: fmt.Errorf("publish payload: %w", err)}
		}
		stats.Published = payload.TotalItems
	}

	if err := d.markCompleted(ctx, slug, retrieved.EventName); err != nil {
		return payload, stats, err
	}

	stats.Duration = time.Since(start)

	d.logger.Info("run completed",
		"event", retrieved.EventName,
		"items", payload.TotalItems,
		"geocoded", stats.Geocoded,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return payload, stats, nil
}

// persist writes one stage output and the run-state update in a single
// transaction, keyed by stage, event slug, and generation time.
func (d *Driver) persist(ctx context.Context, stage domain.Stage, slug, eventName string, output any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal %s output: %w", stage, err)
	}

	result := &domain.StageResult{
		Stage:         stage,
		EventSlug:     slug,
		SchemaVersion: domain.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Output:        data,
	}

	err = d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := d.store.SaveStageResult(txCtx, result); err != nil {
			return fmt.Errorf("save stage result: %w", err)
		}

		state, err := d.runs.GetRunState(txCtx, slug)
		if err != nil {
			return fmt.Errorf("get run state: %w", err)
		}
		state.EventSlug = slug
		if eventName != "" {
			state.EventName = eventName
		}
		state.LastStage = stage
		state.StageWrites++
		state.UpdatedAt = time.Now().UTC()

		return d.runs.UpdateRunState(txCtx, state)
	})
	if err != nil {
		return fmt.Errorf("persist %s: %w", stage, err)
	}

	d.logger.Debug("persisted stage output", "stage", stage, "slug", slug)
	return nil
}

func (d *Driver) loadStage(ctx context.Context, stage domain.Stage, slug string, out any) error {
	result, err := d.store.LatestStageResult(ctx, stage, slug)
	if err != nil {
		return fmt.Errorf("load %s for %s: %w", stage, slug, err)
	}
	if err := json.Unmarshal(result.Output, out); err != nil {
		return fmt.Errorf("decode %s output: %w", stage, err)
	}
	return nil
}

func (d *Driver) markCompleted(ctx context.Context, slug, eventName string) error {
	return d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		state, err := d.runs.GetRunState(txCtx, slug)
		if err != nil {
			return err
		}
		state.EventSlug = slug
		state.EventName = eventName
		state.Completed = true
		state.UpdatedAt = time.Now().UTC()
		return d.runs.UpdateRunState(txCtx, state)
	})
}

func buildStats(analysis *domain.EventAnalysis, retrieved *domain.RetrievalResult, payload *domain.Payload) *domain.RunStats {
	stats := &domain.RunStats{
		EventName: retrieved.EventName,
		Queries:   len(analysis.Queries),
	}

	for _, cat := range retrieved.Categories {
		stats.Previews += len(cat.Previews)
		stats.Details += len(cat.Details)
		switch cat.State {
		case domain.StateConfirmed, domain.StateDetailed:
			stats.Confirmed++
		case domain.StateDeclined:
			stats.Declined++
		}
	}

	for _, item := range payload.Items {
		if item.Coordinate != nil {
			stats.Geocoded++
		}
	}

	return stats
}

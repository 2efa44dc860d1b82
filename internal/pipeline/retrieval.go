package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"event_explorer/internal/config"
	"event_explorer/internal/domain"
)

// Retrieval fetches content per category in two fidelity phases. Previews
// come first for every category; detail items are fetched only for
// categories whose previews the checkpoint confirmed, and only for source
// URLs that appeared in those previews. Categories are independent: the
// four preview fetches run concurrently, and a failure or decline in one
// never cancels the others.
type Retrieval struct {
	source       ContentSource
	policy       config.ConfirmPolicy
	previewCount int
	maxItems     int
	logger       *slog.Logger
}

func NewRetrieval(source ContentSource, cfg config.PipelineConfig, logger *slog.Logger) *Retrieval {
	return &Retrieval{
		source:       source,
		policy:       cfg.ConfirmPolicy,
		previewCount: cfg.PreviewCount,
		maxItems:     cfg.MaxItemsPerCategory,
		logger:       logger.With("stage", domain.StageRetrieval),
	}
}

// FetchPreviews fetches preview items for all four categories concurrently.
// A category whose fetch fails is recorded as skipped with the error note;
// the method itself never fails.
func (r *Retrieval) FetchPreviews(ctx context.Context, analysis *domain.EventAnalysis) *domain.RetrievalResult {
	categories := domain.Categories()
	results := make([]domain.CategoryResult, len(categories))

	var wg sync.WaitGroup
	for i, cat := range categories {
		results[i] = domain.CategoryResult{Category: cat, State: domain.StatePending}

		query, ok := analysis.QueryFor(cat)
		if !ok {
			results[i].State = domain.StateSkipped
			results[i].Error = "no query for category"
			continue
		}

		wg.Add(1)
		go func(i int, query domain.SearchQuery) {
			defer wg.Done()

			items, err := r.source.FetchPreview(ctx, query, r.previewLimit(query.Category))
			if err != nil {
				r.logger.Warn("preview fetch failed",
					"category", query.Category,
					"error", err,
				)
				results[i].State = domain.StateSkipped
				results[i].Error = err.Error()
				return
			}

			results[i].Previews = items
			results[i].State = domain.StatePreviewed
		}(i, query)
	}
	wg.Wait()

	return &domain.RetrievalResult{
		EventName:  analysis.EventName,
		Locations:  analysis.Locations,
		Categories: results,
	}
}

// ConfirmAndFetch runs the checkpoint over the previewed categories and
// fetches detail items for the confirmed ones. The input is not mutated;
// a new result is returned.
func (r *Retrieval) ConfirmAndFetch(ctx context.Context, analysis *domain.EventAnalysis, previews *domain.RetrievalResult, checkpoint Checkpoint) (*domain.RetrievalResult, error) {
	result := &domain.RetrievalResult{
		EventName:  previews.EventName,
		Locations:  previews.Locations,
		Categories: append([]domain.CategoryResult(nil), previews.Categories...),
	}

	if err := r.confirm(ctx, result, checkpoint); err != nil {
		return nil, &domain.StageError{Stage: domain.StageRetrieval, Err: err}
	}

	var wg sync.WaitGroup
	for i := range result.Categories {
		if result.Categories[i].State != domain.StateConfirmed {
			continue
		}

		query, ok := analysis.QueryFor(result.Categories[i].Category)
		if !ok {
			// Confirmed categories always came from a previewed query.
			result.Categories[i].State = domain.StateSkipped
			result.Categories[i].Error = "no query for category"
			continue
		}

		wg.Add(1)
		go func(cat *domain.CategoryResult, query domain.SearchQuery) {
			defer wg.Done()
			r.fetchDetails(ctx, cat, query)
		}(&result.Categories[i], query)
	}
	wg.Wait()

	return result, nil
}

// confirm applies the configured confirmation policy, moving previewed
// categories to Confirmed or Declined.
func (r *Retrieval) confirm(ctx context.Context, result *domain.RetrievalResult, checkpoint Checkpoint) error {
	if r.policy == config.ConfirmPerEvent {
		var previewed []domain.CategoryResult
		for _, cat := range result.Categories {
			if cat.State == domain.StatePreviewed {
				previewed = append(previewed, cat)
			}
		}
		if len(previewed) == 0 {
			return nil
		}

		confirmed, err := checkpoint.Confirm(ctx, domain.CheckpointPreview{
			EventName:  result.EventName,
			Categories: previewed,
		})
		if err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}

		for i := range result.Categories {
			if result.Categories[i].State != domain.StatePreviewed {
				continue
			}
			if confirmed {
				result.Categories[i].State = domain.StateConfirmed
			} else {
				result.Categories[i].State = domain.StateDeclined
			}
		}
		return nil
	}

	for i := range result.Categories {
		if result.Categories[i].State != domain.StatePreviewed {
			continue
		}

		confirmed, err := checkpoint.Confirm(ctx, domain.CheckpointPreview{
			EventName:  result.EventName,
			Categories: []domain.CategoryResult{result.Categories[i]},
		})
		if err != nil {
			return fmt.Errorf("checkpoint %s: %w", result.Categories[i].Category, err)
		}

		if confirmed {
			result.Categories[i].State = domain.StateConfirmed
		} else {
			result.Categories[i].State = domain.StateDeclined
		}
	}
	return nil
}

// fetchDetails upgrades a confirmed category to detail fidelity. Detail
// items are kept only for source URLs that were previewed; a detail item
// must never exist without its confirmed preview. A failed detail fetch
// leaves the category at Confirmed with its previews intact.
func (r *Retrieval) fetchDetails(ctx context.Context, cat *domain.CategoryResult, query domain.SearchQuery) {
	items, err := r.source.FetchDetail(ctx, query, r.maxItems)
	if err != nil {
		r.logger.Warn("detail fetch failed",
			"category", cat.Category,
			"error", err,
		)
		cat.Error = err.Error()
		return
	}

	previewed := make(map[string]struct{}, len(cat.Previews))
	for _, p := range cat.Previews {
		previewed[p.SourceURL] = struct{}{}
	}

	details := make([]domain.ContentItem, 0, len(cat.Previews))
	for _, item := range items {
		if _, ok := previewed[item.SourceURL]; !ok {
			continue
		}
		item.Detail = true
		details = append(details, item)
	}

	cat.Details = details
	cat.State = domain.StateDetailed
}

// previewLimit returns the category's preview size within the 2..5 band.
// Broad categories preview one extra item; official and live-stream sources
// tend to be sparse and preview one fewer.
func (r *Retrieval) previewLimit(cat domain.Category) int {
	limit := r.previewCount
	switch cat {
	case domain.CategorySocial, domain.CategoryVideo:
		limit++
	case domain.CategoryOfficial, domain.CategoryLiveStream:
		limit--
	}
	if limit < 2 {
		limit = 2
	}
	if limit > 5 {
		limit = 5
	}
	return limit
}

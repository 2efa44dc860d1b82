package pipeline

import (
	"context"

	"event_explorer/internal/domain"
)

// Decisions is a scripted Checkpoint keyed by category. It backs resumed
// runs, where the caller supplies decisions up front instead of answering
// interactively. Categories without an entry are declined.
type Decisions map[domain.Category]bool

// Confirm implements Checkpoint. Under per-event policy the preview spans
// several categories; it confirms only when every previewed category was
// approved.
func (d Decisions) Confirm(_ context.Context, preview domain.CheckpointPreview) (bool, error) {
	if len(preview.Categories) == 0 {
		return false, nil
	}
	for _, cat := range preview.Categories {
		if !d[cat.Category] {
			return false, nil
		}
	}
	return true, nil
}

// CheckpointFunc adapts a function to the Checkpoint interface.
type CheckpointFunc func(ctx context.Context, preview domain.CheckpointPreview) (bool, error)

func (f CheckpointFunc) Confirm(ctx context.Context, preview domain.CheckpointPreview) (bool, error) {
	return f(ctx, preview)
}

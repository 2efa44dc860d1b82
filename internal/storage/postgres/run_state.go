package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"event_explorer/internal/domain"
)

type RunStateStore struct {
	db *sqlx.DB
}

func NewRunStateStore(db *sqlx.DB) *RunStateStore {
	return &RunStateStore{db: db}
}

func (s *RunStateStore) GetRunState(ctx context.Context, eventSlug string) (*domain.RunState, error) {
	var state domain.RunState
	query := `
		SELECT id, event_slug, event_name, last_stage, completed, stage_writes, updated_at
		FROM run_state
		WHERE event_slug = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, eventSlug)
	if err == sql.ErrNoRows {
		// Return empty state for new runs
		return &domain.RunState{
			EventSlug: eventSlug,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RunStateStore) UpdateRunState(ctx context.Context, state *domain.RunState) error {
	query := `
		INSERT INTO run_state (event_slug, event_name, last_stage, completed, stage_writes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_slug) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			last_stage = EXCLUDED.last_stage,
			completed = EXCLUDED.completed,
			stage_writes = EXCLUDED.stage_writes,
			updated_at = EXCLUDED.updated_at`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.EventSlug,
		state.EventName,
		state.LastStage,
		state.Completed,
		state.StageWrites,
		state.UpdatedAt,
	)
	return err
}

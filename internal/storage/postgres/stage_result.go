package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"event_explorer/internal/domain"
)

// StageResultStore persists stage outputs keyed by stage, event slug, and
// generation time, each with its metadata envelope. Keys are unique, so
// concurrent runs for different events never collide and one event's run
// keeps an auditable history of every stage write.
type StageResultStore struct {
	db *sqlx.DB
}

func NewStageResultStore(db *sqlx.DB) *StageResultStore {
	return &StageResultStore{db: db}
}

func (s *StageResultStore) SaveStageResult(ctx context.Context, result *domain.StageResult) error {
	query := `
		INSERT INTO stage_results (stage, event_slug, schema_version, generated_at, output)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		result.Stage,
		result.EventSlug,
		result.SchemaVersion,
		result.GeneratedAt,
		result.Output,
	).Scan(&result.ID)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}

	return nil
}

func (s *StageResultStore) LatestStageResult(ctx context.Context, stage domain.Stage, eventSlug string) (*domain.StageResult, error) {
	query := `
		SELECT id, stage, event_slug, schema_version, generated_at, output
		FROM stage_results
		WHERE stage = $1 AND event_slug = $2
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`

	var result domain.StageResult
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &result, query, stage, eventSlug)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no %s result for %q", stage, eventSlug)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// StageHistory returns every persisted result for an event in write order.
func (s *StageResultStore) StageHistory(ctx context.Context, eventSlug string) ([]domain.StageResult, error) {
	query := `
		SELECT id, stage, event_slug, schema_version, generated_at, output
		FROM stage_results
		WHERE event_slug = $1
		ORDER BY generated_at ASC, id ASC`

	var results []domain.StageResult
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &results, query, eventSlug); err != nil {
		return nil, err
	}
	return results, nil
}

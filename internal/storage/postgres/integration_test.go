//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"event_explorer/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_stage_results.up.sql"),
			filepath.Join(migrationsPath, "002_create_run_state.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM stage_results")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM run_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func stageOutput(s *PostgresIntegrationSuite, v any) []byte {
	data, err := json.Marshal(v)
	s.Require().NoError(err)
	return data
}

func (s *PostgresIntegrationSuite) TestStageResultStore_SaveAndLoadLatest() {
	store := NewStageResultStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &domain.StageResult{
		Stage:         domain.StageAnalysis,
		EventSlug:     "harbor_fire",
		SchemaVersion: domain.SchemaVersion,
		GeneratedAt:   now.Add(-time.Minute),
		Output:        stageOutput(s, map[string]string{"summary": "old"}),
	}
	s.Require().NoError(store.SaveStageResult(s.ctx, first))
	s.Greater(first.ID, int64(0))

	second := &domain.StageResult{
		Stage:         domain.StageAnalysis,
		EventSlug:     "harbor_fire",
		SchemaVersion: domain.SchemaVersion,
		GeneratedAt:   now,
		Output:        stageOutput(s, map[string]string{"summary": "new"}),
	}
	s.Require().NoError(store.SaveStageResult(s.ctx, second))

	latest, err := store.LatestStageResult(s.ctx, domain.StageAnalysis, "harbor_fire")
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)

	var decoded map[string]string
	s.Require().NoError(json.Unmarshal(latest.Output, &decoded))
	s.Equal("new", decoded["summary"])
}

func (s *PostgresIntegrationSuite) TestStageResultStore_LatestIsolatesSlugs() {
	store := NewStageResultStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, slug := range []string{"event_a", "event_b"} {
		result := &domain.StageResult{
			Stage:         domain.StageRetrievalPreviews,
			EventSlug:     slug,
			SchemaVersion: domain.SchemaVersion,
			GeneratedAt:   now,
			Output:        stageOutput(s, map[string]string{"slug": slug}),
		}
		s.Require().NoError(store.SaveStageResult(s.ctx, result))
	}

	latest, err := store.LatestStageResult(s.ctx, domain.StageRetrievalPreviews, "event_b")
	s.Require().NoError(err)

	var decoded map[string]string
	s.Require().NoError(json.Unmarshal(latest.Output, &decoded))
	s.Equal("event_b", decoded["slug"])
}

func (s *PostgresIntegrationSuite) TestStageResultStore_LatestMissing() {
	store := NewStageResultStore(s.db)

	_, err := store.LatestStageResult(s.ctx, domain.StageAnalysis, "never_ran")
	s.Error(err)
}

func (s *PostgresIntegrationSuite) TestStageResultStore_History() {
	store := NewStageResultStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	stages := []domain.Stage{domain.StageAnalysis, domain.StageRetrievalPreviews, domain.StageRetrieval}
	for i, stage := range stages {
		result := &domain.StageResult{
			Stage:         stage,
			EventSlug:     "harbor_fire",
			SchemaVersion: domain.SchemaVersion,
			GeneratedAt:   now.Add(time.Duration(i) * time.Second),
			Output:        stageOutput(s, map[string]int{"step": i}),
		}
		s.Require().NoError(store.SaveStageResult(s.ctx, result))
	}

	history, err := store.StageHistory(s.ctx, "harbor_fire")
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	for i, stage := range stages {
		s.Equal(stage, history[i].Stage)
	}
}

func (s *PostgresIntegrationSuite) TestRunStateStore_EmptyStateForNewRun() {
	store := NewRunStateStore(s.db)

	state, err := store.GetRunState(s.ctx, "fresh_event")
	s.Require().NoError(err)
	s.Equal("fresh_event", state.EventSlug)
	s.False(state.Completed)
	s.Zero(state.StageWrites)
}

func (s *PostgresIntegrationSuite) TestRunStateStore_UpsertAndReload() {
	store := NewRunStateStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	state := &domain.RunState{
		EventSlug:   "harbor_fire",
		EventName:   "Harbor Fire",
		LastStage:   domain.StageRetrievalPreviews,
		StageWrites: 2,
		UpdatedAt:   now,
	}
	s.Require().NoError(store.UpdateRunState(s.ctx, state))

	state.LastStage = domain.StageIntegration
	state.Completed = true
	state.StageWrites = 5
	s.Require().NoError(store.UpdateRunState(s.ctx, state))

	loaded, err := store.GetRunState(s.ctx, "harbor_fire")
	s.Require().NoError(err)
	s.Equal("Harbor Fire", loaded.EventName)
	s.Equal(domain.StageIntegration, loaded.LastStage)
	s.True(loaded.Completed)
	s.Equal(int64(5), loaded.StageWrites)

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM run_state WHERE event_slug = $1", "harbor_fire"))
	s.Equal(1, count, "upsert keeps one row per event")
}

func (s *PostgresIntegrationSuite) TestTransactionManager_RollsBackBothWrites() {
	tm := NewTransactionManager(s.db)
	results := NewStageResultStore(s.db)
	runs := NewRunStateStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		result := &domain.StageResult{
			Stage:         domain.StageAnalysis,
			EventSlug:     "doomed",
			SchemaVersion: domain.SchemaVersion,
			GeneratedAt:   now,
			Output:        stageOutput(s, map[string]string{"summary": "x"}),
		}
		if err := results.SaveStageResult(txCtx, result); err != nil {
			return err
		}
		if err := runs.UpdateRunState(txCtx, &domain.RunState{
			EventSlug: "doomed",
			LastStage: domain.StageAnalysis,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().Error(err)

	var count int
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM stage_results WHERE event_slug = $1", "doomed"))
	s.Zero(count)
	s.Require().NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM run_state WHERE event_slug = $1", "doomed"))
	s.Zero(count)
}

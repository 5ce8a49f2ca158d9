package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

func newRecord(t *testing.T, id, agent string, created time.Time) *execution.Record {
	t.Helper()
	plan, err := execution.NewPlan([]execution.Step{{ID: "step-1", Action: "summarize", Kind: execution.KindGeneric}})
	require.NoError(t, err)
	res := execution.NewStepResult(plan.Steps()[0])
	require.NoError(t, res.Start())
	require.NoError(t, res.Complete(map[string]any{"summary": "done"}))
	return &execution.Record{
		ExecutionID: id,
		AgentType:   agent,
		Task:        execution.Task{Description: "summarize the week"},
		Plan:        plan,
		StepResults: []execution.StepResult{res},
		FinalOutput: map[string]any{"ok": true},
		Success:     true,
		CreatedAt:   created,
		CompletedAt: created.Add(time.Second),
	}
}

func openRepo(t *testing.T) *ExecutionRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "nested", "executions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_SaveAndGet(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	rec := newRecord(t, "exec_1", "", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	require.NoError(t, repo.Save(ctx, rec))
	got, err := repo.GetByID(ctx, "exec_1")

	require.NoError(t, err)
	assert.Equal(t, "summarize the week", got.Task.Description)
	assert.Equal(t, 1, got.Plan.Len())
	require.Len(t, got.StepResults, 1)
	assert.Equal(t, execution.StepStatusCompleted, got.StepResults[0].Status)
	assert.Equal(t, "done", got.StepResults[0].Result["summary"])
	assert.True(t, got.Success)
}

func TestRepository_SaveIsUpsert(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	rec := newRecord(t, "exec_2", "", time.Now().UTC())
	require.NoError(t, repo.Save(ctx, rec))

	rec.Success = false
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.GetByID(ctx, "exec_2")
	require.NoError(t, err)
	assert.False(t, got.Success)

	all, err := repo.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := openRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, execution.ErrNotFound)
}

func TestRepository_ListRecentFiltersByAgent(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, newRecord(t, "a1", "team-wellness", base)))
	require.NoError(t, repo.Save(ctx, newRecord(t, "a2", "team-wellness", base.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, newRecord(t, "b1", "meeting-optimizer", base.Add(2*time.Hour))))

	wellness, err := repo.ListRecent(ctx, "team-wellness", 10)
	require.NoError(t, err)
	require.Len(t, wellness, 2)
	assert.Equal(t, "a2", wellness[0].ExecutionID)

	latest, err := repo.ListRecent(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "b1", latest[0].ExecutionID)
}

package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sync.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.SyncRun{}))
	return NewRepository(db), db
}

func TestRepository_StartRun(t *testing.T) {
	repo, _ := setupTestDB(t)
	ctx := context.Background()

	run, err := repo.StartRun(ctx, "home", "manual")
	require.NoError(t, err)
	assert.NotZero(t, run.ID)

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusRunning, got.Status)
	assert.Equal(t, "manual", got.Trigger)
	assert.Nil(t, got.CompletedAt)
}

func TestRepository_CompleteRun(t *testing.T) {
	repo, _ := setupTestDB(t)
	ctx := context.Background()

	run, err := repo.StartRun(ctx, "home", "scheduled")
	require.NoError(t, err)
	require.NoError(t, repo.CompleteRun(ctx, run.ID, 3, 2, 1, 0, ""))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Pulled)
	assert.Equal(t, 2, got.Pushed)
	assert.Equal(t, 1, got.Deleted)
	assert.NotNil(t, got.CompletedAt)
}

func TestRepository_CompleteRun_Failed(t *testing.T) {
	repo, _ := setupTestDB(t)
	ctx := context.Background()

	run, err := repo.StartRun(ctx, "home", "cli")
	require.NoError(t, err)
	require.NoError(t, repo.CompleteRun(ctx, run.ID, 0, 0, 0, 4, "unauthorized"))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusFailed, got.Status)
	assert.Equal(t, 4, got.Failed)
	assert.Equal(t, "unauthorized", got.Error)

	assert.ErrorIs(t, repo.CompleteRun(ctx, 999, 0, 0, 0, 0, ""), database.ErrNotFound)
}

func TestRepository_ListRuns(t *testing.T) {
	repo, _ := setupTestDB(t)
	ctx := context.Background()

	for _, server := range []string{"a", "b", "a"} {
		_, err := repo.StartRun(ctx, server, "manual")
		require.NoError(t, err)
	}

	all, err := repo.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID)

	onlyA, err := repo.ListRuns(ctx, "a", 0)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	limited, err := repo.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepository_AbandonStaleRuns(t *testing.T) {
	repo, db := setupTestDB(t)
	ctx := context.Background()

	stale, err := repo.StartRun(ctx, "home", "scheduled")
	require.NoError(t, err)
	require.NoError(t, db.Model(&entities.SyncRun{}).Where("id = ?", stale.ID).
		Update("updated_at", time.Now().Add(-time.Hour)).Error)

	fresh, err := repo.StartRun(ctx, "home", "manual")
	require.NoError(t, err)

	n, err := repo.AbandonStaleRuns(ctx, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetRun(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusFailed, got.Status)
	assert.Equal(t, "sync was interrupted", got.Error)

	got, err = repo.GetRun(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RunStatusRunning, got.Status)
}

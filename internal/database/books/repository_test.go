package books

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "books.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.DownloadedBook{}))
	return NewRepository(db)
}

func TestRepository_RegisterDownload(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.RegisterDownload(ctx, &entities.DownloadedBook{BookID: "b2", ServerID: "s1", Title: "Two"}))
	require.NoError(t, repo.RegisterDownload(ctx, &entities.DownloadedBook{BookID: "b1", ServerID: "s1", Title: "One"}))
	require.NoError(t, repo.RegisterDownload(ctx, &entities.DownloadedBook{BookID: "b9", ServerID: "s2"}))

	ids, err := repo.DownloadedBookIDs(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, ids)

	ids, err = repo.DownloadedBookIDs(ctx, "s3")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRepository_RegisterDownload_Idempotent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.RegisterDownload(ctx, &entities.DownloadedBook{BookID: "b1", ServerID: "s1", Title: "Old"}))
	require.NoError(t, repo.RegisterDownload(ctx, &entities.DownloadedBook{BookID: "b1", ServerID: "s1", Title: "New"}))

	books, err := repo.ListDownloads(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "New", books[0].Title)
}

func TestRepository_RemoveDownload(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.RegisterDownload(ctx, &entities.DownloadedBook{BookID: "b1", ServerID: "s1"}))

	ok, err := repo.IsDownloaded(ctx, "s1", "b1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.RemoveDownload(ctx, "s1", "b1"))

	ok, err = repo.IsDownloaded(ctx, "s1", "b1")
	require.NoError(t, err)
	assert.False(t, ok)
}

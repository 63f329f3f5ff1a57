package bookmarks

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

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "bookmarks.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Bookmark{}))
	return NewRepository(db)
}

func strPtr(s string) *string { return &s }

func TestRepository_InsertBookmark_AssignsID(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	b := &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/ch1.xhtml"}
	require.NoError(t, repo.InsertBookmark(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, entities.SyncStatusUnsynced, b.SyncStatus)

	got, err := repo.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "/ch1.xhtml", got.Href)
}

func TestRepository_GetBookmark_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetBookmark(context.Background(), "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRepository_LinkBookmark(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	b := &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/ch1.xhtml"}
	require.NoError(t, repo.InsertBookmark(ctx, b))
	require.NoError(t, repo.LinkBookmark(ctx, b.ID, "srv-1"))

	got, err := repo.GetBookmark(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLinked())
	assert.Equal(t, "srv-1", *got.ServerBookmarkID)
	assert.Equal(t, entities.SyncStatusSynced, got.SyncStatus)
}

func TestRepository_LinkBookmark_UniquePerServer(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertBookmark(ctx, &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", ServerBookmarkID: strPtr("srv-1")}))
	err := repo.InsertBookmark(ctx, &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/b", ServerBookmarkID: strPtr("srv-1")})
	assert.Error(t, err)

	// Same server id on another server is a different bookmark.
	require.NoError(t, repo.InsertBookmark(ctx, &entities.Bookmark{BookID: "b1", ServerID: "s2", Href: "/a", ServerBookmarkID: strPtr("srv-1")}))
}

func TestRepository_SoftDeleteBookmark(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	b := &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a", SyncStatus: entities.SyncStatusSynced, ServerBookmarkID: strPtr("srv-1")}
	require.NoError(t, repo.InsertBookmark(ctx, b))
	require.NoError(t, repo.SoftDeleteBookmark(ctx, b.ID))

	live, err := repo.ListBookmarks(ctx, "s1", "b1")
	require.NoError(t, err)
	assert.Empty(t, live)

	deleted, err := repo.ListDeletedBookmarks(ctx, "s1", nil)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, entities.SyncStatusUnsynced, deleted[0].SyncStatus)
	assert.NotNil(t, deleted[0].DeletedAt)

	excluded, err := repo.ListDeletedBookmarks(ctx, "s1", []string{"b1"})
	require.NoError(t, err)
	assert.Empty(t, excluded)

	assert.ErrorIs(t, repo.SoftDeleteBookmark(ctx, b.ID), database.ErrNotFound)

	require.NoError(t, repo.DeleteBookmarks(ctx, []string{b.ID}))
	_, err = repo.GetBookmark(ctx, b.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRepository_ClaimBookmarks(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	pending := &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/a"}
	failed := &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/b", SyncStatus: entities.SyncStatusError}
	synced := &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/c", SyncStatus: entities.SyncStatusSynced}
	ignored := &entities.Bookmark{BookID: "b2", ServerID: "s1", Href: "/d"}
	removed := &entities.Bookmark{BookID: "b1", ServerID: "s1", Href: "/e"}
	for _, b := range []*entities.Bookmark{pending, failed, synced, ignored, removed} {
		require.NoError(t, repo.InsertBookmark(ctx, b))
	}
	require.NoError(t, repo.SoftDeleteBookmark(ctx, removed.ID))

	claimed, err := repo.ClaimBookmarks(ctx, "s1", []string{"b2"}, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	var ids []string
	for _, b := range claimed {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []string{pending.ID, failed.ID}, ids)

	got, err := repo.GetBookmark(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusSyncing, got.SyncStatus)

	// Fresh claims are not claimed twice.
	again, err := repo.ClaimBookmarks(ctx, "s1", []string{"b2"}, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, repo.SetBookmarkStatus(ctx, pending.ID, entities.SyncStatusError))
	got, err = repo.GetBookmark(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusError, got.SyncStatus)
}

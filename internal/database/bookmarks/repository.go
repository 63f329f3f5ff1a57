// Package bookmarks provides database operations for bookmarks.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/entities"
)

// Repository handles bookmark database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new bookmark repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetBookmark returns a bookmark by local id, including soft-deleted ones.
func (r *Repository) GetBookmark(ctx context.Context, id string) (*entities.Bookmark, error) {
	var b entities.Bookmark
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("bookmark %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookmarks returns the non-deleted bookmarks of a book, oldest first.
func (r *Repository) ListBookmarks(ctx context.Context, serverID, bookID string) ([]entities.Bookmark, error) {
	var rows []entities.Bookmark
	err := r.db.WithContext(ctx).
		Scopes(database.NotDeleted).
		Where("server_id = ? AND book_id = ?", serverID, bookID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// InsertBookmark stores a new bookmark, assigning a local id when missing.
func (r *Repository) InsertBookmark(ctx context.Context, b *entities.Bookmark) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.SyncStatus == "" {
		b.SyncStatus = entities.SyncStatusUnsynced
	}
	if b.StatusChangedAt.IsZero() {
		b.StatusChangedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(b).Error
}

// LinkBookmark records the server id of a local bookmark and marks it SYNCED.
func (r *Repository) LinkBookmark(ctx context.Context, id, serverBookmarkID string) error {
	updates := database.StatusUpdate(entities.SyncStatusSynced, time.Now())
	updates["server_bookmark_id"] = serverBookmarkID
	return r.db.WithContext(ctx).Model(&entities.Bookmark{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteBookmarks physically removes bookmarks by local id.
func (r *Repository) DeleteBookmarks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entities.Bookmark{}).Error
}

// ClaimBookmarks selects the server's pushable, non-deleted bookmarks outside
// the excluded books and marks them SYNCING in the same transaction.
func (r *Repository) ClaimBookmarks(ctx context.Context, serverID string, excludeBookIDs []string, staleBefore time.Time) ([]entities.Bookmark, error) {
	var rows []entities.Bookmark
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("server_id = ?", serverID).
			Scopes(database.NotDeleted, database.PushCandidates(staleBefore), database.ExcludeBooks(excludeBookIDs)).
			Order("created_at ASC, id ASC").
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}

		ids := make([]string, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		return tx.Model(&entities.Bookmark{}).
			Where("id IN ?", ids).
			Updates(database.StatusUpdate(entities.SyncStatusSyncing, now)).Error
	})
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i].SyncStatus = entities.SyncStatusSyncing
		rows[i].StatusChangedAt = now
	}
	return rows, nil
}

// ListDeletedBookmarks returns the server's soft-deleted bookmarks outside the
// excluded books, linked or not.
func (r *Repository) ListDeletedBookmarks(ctx context.Context, serverID string, excludeBookIDs []string) ([]entities.Bookmark, error) {
	var rows []entities.Bookmark
	err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Scopes(database.SoftDeleted, database.ExcludeBooks(excludeBookIDs)).
		Order("deleted_at ASC").
		Find(&rows).Error
	return rows, err
}

// SetBookmarkStatus records the outcome of a push for one bookmark.
func (r *Repository) SetBookmarkStatus(ctx context.Context, id string, status entities.SyncStatus) error {
	return r.db.WithContext(ctx).Model(&entities.Bookmark{}).
		Where("id = ?", id).
		Updates(database.StatusUpdate(status, time.Now())).Error
}

// SoftDeleteBookmark hides a bookmark locally. The row stays until the next
// push has removed it from the server.
func (r *Repository) SoftDeleteBookmark(ctx context.Context, id string) error {
	now := time.Now()
	updates := database.StatusUpdate(entities.SyncStatusUnsynced, now)
	updates["deleted_at"] = now

	result := r.db.WithContext(ctx).Model(&entities.Bookmark{}).
		Scopes(database.NotDeleted).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bookmark %s: %w", id, database.ErrNotFound)
	}
	return nil
}

// Package progress provides database operations for reading progress.
//
// There is at most one row per (book, server). Writes go through an upsert
// keyed on that pair, so re-applying the same server state never duplicates.
package progress

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/entities"
)

// Repository handles read progress database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetProgress returns the progress row for a book, or nil when there is none.
func (r *Repository) GetProgress(ctx context.Context, serverID, bookID string) (*entities.ReadProgress, error) {
	var p entities.ReadProgress
	err := r.db.WithContext(ctx).
		Where("server_id = ? AND book_id = ?", serverID, bookID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProgress returns all progress rows for a server.
func (r *Repository) ListProgress(ctx context.Context, serverID string) ([]entities.ReadProgress, error) {
	var rows []entities.ReadProgress
	err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("book_id ASC").
		Find(&rows).Error
	return rows, err
}

// UpsertProgress inserts or replaces the row for (p.BookID, p.ServerID).
func (r *Repository) UpsertProgress(ctx context.Context, p *entities.ReadProgress) error {
	if p.StatusChangedAt.IsZero() {
		p.StatusChangedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "book_id"}, {Name: "server_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"page", "percentage", "epub_locator", "elapsed_seconds",
			"last_modified", "sync_status", "status_changed_at",
		}),
	}).Create(p).Error
}

// DeleteProgress physically removes the row for a book.
func (r *Repository) DeleteProgress(ctx context.Context, serverID, bookID string) error {
	return r.db.WithContext(ctx).
		Where("server_id = ? AND book_id = ?", serverID, bookID).
		Delete(&entities.ReadProgress{}).Error
}

// ClaimProgress selects the server's pushable rows, skipping excluded books,
// and marks them SYNCING before returning them.
func (r *Repository) ClaimProgress(ctx context.Context, serverID string, excludeBookIDs []string, staleBefore time.Time) ([]entities.ReadProgress, error) {
	var rows []entities.ReadProgress
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("server_id = ?", serverID).
			Scopes(database.PushCandidates(staleBefore), database.ExcludeBooks(excludeBookIDs)).
			Order("id ASC").
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}

		ids := make([]uint, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		return tx.Model(&entities.ReadProgress{}).
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

// SetProgressStatus records the outcome of a push for one row.
func (r *Repository) SetProgressStatus(ctx context.Context, id uint, status entities.SyncStatus) error {
	return r.db.WithContext(ctx).Model(&entities.ReadProgress{}).
		Where("id = ?", id).
		Updates(database.StatusUpdate(status, time.Now())).Error
}

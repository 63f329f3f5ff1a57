package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// PushCandidates limits a query to rows a push batch may claim: UNSYNCED or
// ERROR rows, plus SYNCING rows whose claim is older than staleBefore.
func PushCandidates(staleBefore time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(sync_status IN ? OR (sync_status = ? AND status_changed_at < ?))",
			entities.PushCandidateStatuses, entities.SyncStatusSyncing, staleBefore)
	}
}

// ExcludeBooks drops rows belonging to the given books. An empty list is a no-op.
func ExcludeBooks(bookIDs []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(bookIDs) == 0 {
			return db
		}
		return db.Where("book_id NOT IN ?", bookIDs)
	}
}

// NotDeleted limits a query to rows that are not soft-deleted.
func NotDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

// SoftDeleted limits a query to soft-deleted rows.
func SoftDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NOT NULL")
}

// StatusUpdate is the column set written when a row's sync status changes.
func StatusUpdate(status entities.SyncStatus, at time.Time) map[string]any {
	return map[string]any{
		"sync_status":       status,
		"status_changed_at": at,
	}
}

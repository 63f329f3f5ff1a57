// Package annotations provides database operations for annotations.
package annotations

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

// Repository handles annotation database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new annotation repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetAnnotation returns an annotation by local id, including soft-deleted ones.
func (r *Repository) GetAnnotation(ctx context.Context, id string) (*entities.Annotation, error) {
	var a entities.Annotation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("annotation %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnnotations returns the non-deleted annotations of a book, oldest first.
func (r *Repository) ListAnnotations(ctx context.Context, serverID, bookID string) ([]entities.Annotation, error) {
	var rows []entities.Annotation
	err := r.db.WithContext(ctx).
		Scopes(database.NotDeleted).
		Where("server_id = ? AND book_id = ?", serverID, bookID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// InsertAnnotation stores a new annotation, assigning a local id when missing.
func (r *Repository) InsertAnnotation(ctx context.Context, a *entities.Annotation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.SyncStatus == "" {
		a.SyncStatus = entities.SyncStatusUnsynced
	}
	now := time.Now()
	if a.StatusChangedAt.IsZero() {
		a.StatusChangedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// SaveAnnotation writes the server link, text, timestamps and status of an
// existing annotation.
func (r *Repository) SaveAnnotation(ctx context.Context, a *entities.Annotation) error {
	a.StatusChangedAt = time.Now()
	return r.db.WithContext(ctx).Model(&entities.Annotation{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"server_annotation_id": a.ServerAnnotationID,
			"annotation_text":      a.AnnotationText,
			"updated_at":           a.UpdatedAt,
			"sync_status":          a.SyncStatus,
			"status_changed_at":    a.StatusChangedAt,
		}).Error
}

// DeleteAnnotations physically removes annotations by local id.
func (r *Repository) DeleteAnnotations(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&entities.Annotation{}).Error
}

// ClaimAnnotations selects the server's pushable, non-deleted annotations
// outside the excluded books and marks them SYNCING in the same transaction.
func (r *Repository) ClaimAnnotations(ctx context.Context, serverID string, excludeBookIDs []string, staleBefore time.Time) ([]entities.Annotation, error) {
	var rows []entities.Annotation
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
		return tx.Model(&entities.Annotation{}).
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

// ListDeletedAnnotations returns the server's soft-deleted annotations outside
// the excluded books, linked or not.
func (r *Repository) ListDeletedAnnotations(ctx context.Context, serverID string, excludeBookIDs []string) ([]entities.Annotation, error) {
	var rows []entities.Annotation
	err := r.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Scopes(database.SoftDeleted, database.ExcludeBooks(excludeBookIDs)).
		Order("deleted_at ASC").
		Find(&rows).Error
	return rows, err
}

// SetAnnotationStatus records the outcome of a push for one annotation.
func (r *Repository) SetAnnotationStatus(ctx context.Context, id string, status entities.SyncStatus) error {
	return r.db.WithContext(ctx).Model(&entities.Annotation{}).
		Where("id = ?", id).
		Updates(database.StatusUpdate(status, time.Now())).Error
}

// UpdateAnnotationText edits the text of a local annotation.
func (r *Repository) UpdateAnnotationText(ctx context.Context, id string, text *string) error {
	now := time.Now()
	updates := database.StatusUpdate(entities.SyncStatusUnsynced, now)
	updates["annotation_text"] = text
	updates["updated_at"] = now

	result := r.db.WithContext(ctx).Model(&entities.Annotation{}).
		Scopes(database.NotDeleted).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("annotation %s: %w", id, database.ErrNotFound)
	}
	return nil
}

// SoftDeleteAnnotation hides an annotation locally. The row stays until the
// next push has removed it from the server.
func (r *Repository) SoftDeleteAnnotation(ctx context.Context, id string) error {
	now := time.Now()
	updates := database.StatusUpdate(entities.SyncStatusUnsynced, now)
	updates["deleted_at"] = now

	result := r.db.WithContext(ctx).Model(&entities.Annotation{}).
		Scopes(database.NotDeleted).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("annotation %s: %w", id, database.ErrNotFound)
	}
	return nil
}

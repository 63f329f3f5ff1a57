// Package sync stores the history of sync runs.
//
// A run is opened before a server's cycle starts and closed with its
// aggregate counts when the cycle finishes. Runs left open by a crashed
// process are closed as failed by AbandonStaleRuns.
//
// # Usage
//
//	repo := sync.NewRepository(db)
//	run, err := repo.StartRun(ctx, "home", "scheduled")
//	...
//	err = repo.CompleteRun(ctx, run.ID, pulled, pushed, deleted, failed, "")
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/entities"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 50

// Repository handles sync run database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new sync run repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// StartRun opens a run for a server.
func (r *Repository) StartRun(ctx context.Context, serverID, trigger string) (*entities.SyncRun, error) {
	now := time.Now()
	run := &entities.SyncRun{
		ServerID:  serverID,
		Trigger:   trigger,
		Status:    entities.RunStatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRun closes a run with its counts. A non-empty errorMsg marks the run failed.
func (r *Repository) CompleteRun(ctx context.Context, id uint, pulled, pushed, deleted, failed int, errorMsg string) error {
	now := time.Now()
	status := entities.RunStatusCompleted
	if errorMsg != "" {
		status = entities.RunStatusFailed
	}

	result := r.db.WithContext(ctx).Model(&entities.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"pulled":       pulled,
			"pushed":       pushed,
			"deleted":      deleted,
			"failed":       failed,
			"error":        errorMsg,
			"updated_at":   now,
			"completed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sync run %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// GetRun returns a run by id.
func (r *Repository) GetRun(ctx context.Context, id uint) (*entities.SyncRun, error) {
	var run entities.SyncRun
	err := r.db.WithContext(ctx).First(&run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("sync run %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first. An empty serverID
// lists runs for every server.
func (r *Repository) ListRuns(ctx context.Context, serverID string, limit int) ([]entities.SyncRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := r.db.WithContext(ctx).Model(&entities.SyncRun{})
	if serverID != "" {
		query = query.Where("server_id = ?", serverID)
	}

	var runs []entities.SyncRun
	err := query.Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// AbandonStaleRuns fails runs still marked running that have not been
// updated since olderThan. Returns the number of runs closed.
func (r *Repository) AbandonStaleRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&entities.SyncRun{}).
		Where("status = ? AND updated_at < ?", entities.RunStatusRunning, olderThan).
		Updates(map[string]any{
			"status":       entities.RunStatusFailed,
			"error":        "sync was interrupted",
			"updated_at":   now,
			"completed_at": now,
		})
	return result.RowsAffected, result.Error
}

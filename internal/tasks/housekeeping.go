package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

const (
	defaultAuditRetentionDays = 30
	defaultStaleRunMinutes    = 60
)

// AuditEventCleaner deletes audit events past their retention.
type AuditEventCleaner interface {
	DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// StaleRunCloser marks sync runs that never completed as failed.
type StaleRunCloser interface {
	AbandonStaleRuns(ctx context.Context, olderThan time.Time) (int64, error)
}

// FailureReporter receives housekeeping failures. audit.Service implements it.
type FailureReporter interface {
	Report(err error, context map[string]any)
}

// Housekeeper holds what the housekeeping task cleans. Any field may be nil.
type Housekeeper struct {
	Audit    AuditEventCleaner
	Runs     StaleRunCloser
	Reporter FailureReporter
}

// HousekeepingTask prunes the audit trail and closes sync runs left open by
// a crashed or killed process.
type HousekeepingTask struct {
	AuditRetentionDays int `json:"audit_retention_days"`
	StaleRunMinutes    int `json:"stale_run_minutes"`
}

// Config returns the queue configuration for housekeeping tasks.
func (t HousekeepingTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "housekeeping",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// HousekeepingProcessor runs every configured step even when an earlier one
// fails. Failures are reported and returned joined so the task is retried.
func HousekeepingProcessor(h Housekeeper) backlite.QueueProcessor[HousekeepingTask] {
	return func(ctx context.Context, task HousekeepingTask) error {
		var errs []error

		if h.Audit != nil {
			days := task.AuditRetentionDays
			if days <= 0 {
				days = defaultAuditRetentionDays
			}
			deleted, err := h.Audit.DeleteOldEvents(ctx, time.Duration(days)*24*time.Hour)
			if err != nil {
				errs = append(errs, h.fail("audit_retention", fmt.Errorf("prune audit events: %w", err)))
			} else if deleted > 0 {
				log.Printf("[TASK] Pruned %d audit events older than %d days", deleted, days)
			}
		}

		if h.Runs != nil {
			minutes := task.StaleRunMinutes
			if minutes <= 0 {
				minutes = defaultStaleRunMinutes
			}
			closed, err := h.Runs.AbandonStaleRuns(ctx, time.Now().Add(-time.Duration(minutes)*time.Minute))
			if err != nil {
				errs = append(errs, h.fail("stale_runs", fmt.Errorf("close stale sync runs: %w", err)))
			} else if closed > 0 {
				log.Printf("[TASK] Marked %d interrupted sync runs as failed", closed)
			}
		}

		return errors.Join(errs...)
	}
}

func (h Housekeeper) fail(step string, err error) error {
	log.Printf("[TASK ERROR] Housekeeping %s: %v", step, err)
	if h.Reporter != nil {
		h.Reporter.Report(err, map[string]any{"task": "housekeeping", "step": step})
	}
	return err
}

// NewHousekeepingQueue creates a backlite queue for housekeeping tasks.
func NewHousekeepingQueue(h Housekeeper) backlite.Queue {
	return backlite.NewQueue(HousekeepingProcessor(h))
}

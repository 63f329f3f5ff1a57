package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/shelfsync/internal/syncer"
)

// CycleRunner runs one reconciliation cycle across all configured servers.
type CycleRunner interface {
	RunSync(ctx context.Context, trigger string) (*syncer.CycleReport, error)
}

// SyncCycleTask runs a full reconciliation cycle.
type SyncCycleTask struct {
	Trigger string `json:"trigger"`
}

// Config returns the queue configuration for sync cycle tasks.
func (t SyncCycleTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_cycle",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SyncCycleProcessor creates a processor function for SyncCycleTask.
// A cycle that is skipped because another one is running succeeds; a cycle
// that could not start is retried. Per-server failures are recorded in the
// sync run history and retried by the next cycle.
func SyncCycleProcessor(runner CycleRunner) backlite.QueueProcessor[SyncCycleTask] {
	return func(ctx context.Context, task SyncCycleTask) error {
		if runner == nil {
			return fmt.Errorf("sync runner not configured")
		}

		trigger := task.Trigger
		if trigger == "" {
			trigger = syncer.TriggerScheduled
		}

		report, err := runner.RunSync(ctx, trigger)
		if errors.Is(err, syncer.ErrCycleInProgress) {
			log.Printf("[TASK] Sync cycle skipped: another cycle is running")
			return nil
		}
		if err != nil {
			return fmt.Errorf("sync cycle: %w", err)
		}

		totals := report.Totals()
		log.Printf("[TASK] Sync cycle (%s) done: %d servers, %d pulled, %d pushed, %d failed",
			trigger, len(report.Servers), totals.Pulled, totals.Pushed, totals.Failed)
		return nil
	}
}

// NewSyncCycleQueue creates a backlite queue for sync cycle tasks.
func NewSyncCycleQueue(runner CycleRunner) backlite.Queue {
	return backlite.NewQueue(SyncCycleProcessor(runner))
}

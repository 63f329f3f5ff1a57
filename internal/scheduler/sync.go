// Package scheduler triggers reconciliation cycles and housekeeping on a cron
// schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/shelfsync/internal/syncer"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

// HousekeepingSchedule runs audit retention and stale run cleanup once a day.
const HousekeepingSchedule = "17 3 * * *"

// TaskQueue enqueues background tasks.
type TaskQueue interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
}

// Options configures a SyncScheduler.
type Options struct {
	Schedule           string
	AuditRetentionDays int
	CycleTimeout       time.Duration
}

// SyncScheduler fires sync cycles on a cron schedule. With a task queue the
// cycle is enqueued and retried by the queue; without one it runs in place.
type SyncScheduler struct {
	runner tasks.CycleRunner
	queue  TaskQueue
	opts   Options

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
}

// NewSyncScheduler creates a scheduler. queue may be nil.
func NewSyncScheduler(runner tasks.CycleRunner, queue TaskQueue, opts Options) *SyncScheduler {
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = 10 * time.Minute
	}
	return &SyncScheduler{
		runner: runner,
		queue:  queue,
		opts:   opts,
		cron:   cron.New(cron.WithParser(parser)),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(s.opts.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.opts.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.opts.Schedule, func() {
		s.dispatch(syncer.TriggerScheduled)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.entryID = entryID

	if s.queue != nil {
		if _, err := s.cron.AddFunc(HousekeepingSchedule, s.housekeeping); err != nil {
			return fmt.Errorf("failed to schedule housekeeping job: %w", err)
		}
	}

	var cancelCtx context.Context
	cancelCtx, s.cancel = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	next, _ := NextRunTime(s.opts.Schedule, time.Now())
	log.Printf("[SCHEDULER] Sync started with schedule '%s' (%s). Next run: %v",
		s.opts.Schedule, CronDescription(s.opts.Schedule), next)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job to return and stops the scheduler.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	log.Printf("[SCHEDULER] Sync stopped")
}

// RunNow triggers a cycle outside the schedule.
func (s *SyncScheduler) RunNow() {
	go s.dispatch(syncer.TriggerManual)
}

// IsRunning returns whether the scheduler is active
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next scheduled cycle will occur.
func (s *SyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *SyncScheduler) dispatch(trigger string) {
	if s.queue != nil {
		ids, err := s.queue.Enqueue(tasks.SyncCycleTask{Trigger: trigger})
		if err != nil {
			log.Printf("[SCHEDULER] Failed to enqueue sync cycle: %v", err)
			return
		}
		log.Printf("[SCHEDULER] Enqueued sync cycle (%s) as task %v", trigger, ids)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CycleTimeout)
	defer cancel()

	if _, err := s.runner.RunSync(ctx, trigger); err != nil {
		if errors.Is(err, syncer.ErrCycleInProgress) {
			log.Printf("[SCHEDULER] Sync skipped (already syncing)")
			return
		}
		log.Printf("[SCHEDULER] Sync failed: %v", err)
	}
}

func (s *SyncScheduler) housekeeping() {
	_, err := s.queue.Enqueue(tasks.HousekeepingTask{AuditRetentionDays: s.opts.AuditRetentionDays})
	if err != nil {
		log.Printf("[SCHEDULER] Failed to enqueue housekeeping: %v", err)
	}
}

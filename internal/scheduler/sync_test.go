package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/syncer"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

type fakeQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
}

func (q *fakeQueue) Enqueue(t ...backlite.Task) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t...)
	return []string{"task-1"}, nil
}

type fakeRunner struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (r *fakeRunner) RunSync(_ context.Context, trigger string) (*syncer.CycleReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	return &syncer.CycleReport{Trigger: trigger}, r.err
}

func TestValidateCronSchedule(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("*/15 * * * *"))
	assert.NoError(t, ValidateCronSchedule(HousekeepingSchedule))
	assert.Error(t, ValidateCronSchedule("every minute"))
	assert.Error(t, ValidateCronSchedule("* * * * * *"))
}

func TestNextRunTime(t *testing.T) {
	from := time.Date(2024, 5, 1, 10, 7, 0, 0, time.UTC)
	next, err := NextRunTime("*/15 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC), next)

	assert.Equal(t, "Every 15 minutes", CronDescription("*/15 * * * *"))
	assert.Equal(t, "Custom schedule: 1 2 * * *", CronDescription("1 2 * * *"))
}

func TestSyncScheduler_StartStop(t *testing.T) {
	s := NewSyncScheduler(&fakeRunner{}, nil, Options{Schedule: "*/15 * * * *"})

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.NotNil(t, s.NextRunTime())

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRunTime())
}

func TestSyncScheduler_InvalidSchedule(t *testing.T) {
	s := NewSyncScheduler(&fakeRunner{}, nil, Options{Schedule: "nope"})
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestSyncScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewSyncScheduler(&fakeRunner{}, nil, Options{Schedule: "*/15 * * * *"})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
}

func TestSyncScheduler_DispatchInPlace(t *testing.T) {
	runner := &fakeRunner{}
	s := NewSyncScheduler(runner, nil, Options{Schedule: "*/15 * * * *"})

	s.dispatch(syncer.TriggerScheduled)
	assert.Equal(t, []string{syncer.TriggerScheduled}, runner.triggers)

	runner.err = syncer.ErrCycleInProgress
	s.dispatch(syncer.TriggerScheduled)
	assert.Len(t, runner.triggers, 2)
}

func TestSyncScheduler_DispatchToQueue(t *testing.T) {
	runner := &fakeRunner{}
	queue := &fakeQueue{}
	s := NewSyncScheduler(runner, queue, Options{Schedule: "*/15 * * * *", AuditRetentionDays: 14})

	s.dispatch(syncer.TriggerManual)
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, tasks.SyncCycleTask{Trigger: syncer.TriggerManual}, queue.tasks[0])
	assert.Empty(t, runner.triggers)

	s.housekeeping()
	require.Len(t, queue.tasks, 2)
	assert.Equal(t, tasks.HousekeepingTask{AuditRetentionDays: 14}, queue.tasks[1])
}

func TestSyncScheduler_RunNow(t *testing.T) {
	queue := &fakeQueue{}
	s := NewSyncScheduler(&fakeRunner{}, queue, Options{Schedule: "*/15 * * * *"})

	s.RunNow()
	assert.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.tasks) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

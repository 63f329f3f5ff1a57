package syncer

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

// ErrCycleInProgress is returned when RunCycle is called while another cycle
// of the same Coordinator is still running.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// Trigger names what started a cycle.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerCLI       = "cli"
)

// ServerReport is everything one cycle did for one server.
type ServerReport struct {
	ServerID       string     `json:"server_id"`
	ProgressPull   PullResult `json:"progress_pull"`
	ProgressPush   PushResult `json:"progress_push"`
	BookmarkPull   PullResult `json:"bookmark_pull"`
	BookmarkPush   PushResult `json:"bookmark_push"`
	AnnotationPull PullResult `json:"annotation_pull"`
	AnnotationPush PushResult `json:"annotation_push"`
	Errors         []string   `json:"errors,omitempty"`
}

// Totals aggregates the report's counts.
func (r *ServerReport) Totals() Totals {
	var t Totals
	t.addPull(r.ProgressPull)
	t.addPush(r.ProgressPush)
	t.addPull(r.BookmarkPull)
	t.addPush(r.BookmarkPush)
	t.addPull(r.AnnotationPull)
	t.addPush(r.AnnotationPush)
	return t
}

func (r *ServerReport) addErr(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// CycleReport is the outcome of one RunCycle call.
type CycleReport struct {
	Trigger    string                   `json:"trigger"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Servers    map[string]*ServerReport `json:"servers"`
}

// Totals aggregates counts across all servers.
func (r *CycleReport) Totals() Totals {
	var t Totals
	for _, s := range r.Servers {
		t.add(s.Totals())
	}
	return t
}

// Coordinator runs reconciliation cycles across a set of servers.
type Coordinator struct {
	stores   Stores
	reporter Reporter
	runs     RunRecorder
	servers  ServerMarker
	opts     Options

	running atomic.Bool
}

// NewCoordinator creates a coordinator. reporter, runs and servers may be nil.
func NewCoordinator(stores Stores, reporter Reporter, runs RunRecorder, servers ServerMarker, opts Options) *Coordinator {
	return &Coordinator{
		stores:   stores,
		reporter: reporter,
		runs:     runs,
		servers:  servers,
		opts:     opts.withDefaults(),
	}
}

// Running reports whether a cycle is in flight.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// RunCycle syncs every server in clients once. Progress for all servers is
// pulled before any is pushed, and each server's push skips the books its
// pull failed on. Bookmarks and annotations pull then push independently.
func (c *Coordinator) RunCycle(ctx context.Context, clients map[string]Remote, trigger string) (*CycleReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer c.running.Store(false)

	report := &CycleReport{
		Trigger:   trigger,
		StartedAt: time.Now(),
		Servers:   make(map[string]*ServerReport, len(clients)),
	}

	engines := make(map[string]*Engine, len(clients))
	for id, client := range clients {
		engines[id] = NewEngine(id, client, c.stores, c.reporter, c.opts)
		report.Servers[id] = &ServerReport{ServerID: id}
	}
	runIDs := c.startRuns(ctx, engines, trigger)

	limit := c.opts.MaxParallelServers

	pulls := FanOut(ctx, engines, limit, func(ctx context.Context, _ string, e *Engine) PullResult {
		return e.PullProgress(ctx)
	})
	for id, out := range pulls {
		r := report.Servers[id]
		r.ProgressPull = out.Result
		r.addErr(out.Result.Err)
		r.addErr(out.Err)
	}

	// A server whose pull panicked or never started is not pushed: none of
	// its books were reconciled with the server.
	pushable := make(map[string]*Engine, len(engines))
	for id, e := range engines {
		if pulls[id].Err == nil && pulls[id].Result.Err == nil {
			pushable[id] = e
		}
	}
	pushes := FanOut(ctx, pushable, limit, func(ctx context.Context, id string, e *Engine) PushResult {
		return e.PushProgress(ctx, pulls[id].Result.FailedBookIDs)
	})
	for id, out := range pushes {
		r := report.Servers[id]
		r.ProgressPush = out.Result
		r.addErr(out.Result.Err)
		r.addErr(out.Err)
	}

	type itemResults struct {
		pull PullResult
		push PushResult
	}

	bookmarks := FanOut(ctx, engines, limit, func(ctx context.Context, _ string, e *Engine) itemResults {
		return itemResults{pull: e.PullBookmarks(ctx), push: e.PushBookmarks(ctx, nil)}
	})
	for id, out := range bookmarks {
		r := report.Servers[id]
		r.BookmarkPull, r.BookmarkPush = out.Result.pull, out.Result.push
		r.addErr(out.Result.pull.Err)
		r.addErr(out.Result.push.Err)
		r.addErr(out.Err)
	}

	annotations := FanOut(ctx, engines, limit, func(ctx context.Context, _ string, e *Engine) itemResults {
		return itemResults{pull: e.PullAnnotations(ctx), push: e.PushAnnotations(ctx, nil)}
	})
	for id, out := range annotations {
		r := report.Servers[id]
		r.AnnotationPull, r.AnnotationPush = out.Result.pull, out.Result.push
		r.addErr(out.Result.pull.Err)
		r.addErr(out.Result.push.Err)
		r.addErr(out.Err)
	}

	report.FinishedAt = time.Now()
	c.finishRuns(ctx, report, runIDs)

	totals := report.Totals()
	log.Printf("[SYNC] Cycle (%s) finished for %d servers in %s: %d pulled, %d pushed, %d deleted, %d failed",
		trigger, len(clients), report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
		totals.Pulled, totals.Pushed, totals.Deleted, totals.Failed)

	return report, nil
}

func (c *Coordinator) startRuns(ctx context.Context, engines map[string]*Engine, trigger string) map[string]uint {
	ids := make(map[string]uint, len(engines))
	if c.runs == nil {
		return ids
	}
	for serverID := range engines {
		run, err := c.runs.StartRun(ctx, serverID, trigger)
		if err != nil {
			log.Printf("[SYNC] %s: failed to record run start: %v", serverID, err)
			continue
		}
		ids[serverID] = run.ID
	}
	return ids
}

func (c *Coordinator) finishRuns(ctx context.Context, report *CycleReport, runIDs map[string]uint) {
	for serverID, r := range report.Servers {
		errMsg := strings.Join(r.Errors, "; ")

		if runID, ok := runIDs[serverID]; ok {
			t := r.Totals()
			if err := c.runs.CompleteRun(ctx, runID, t.Pulled, t.Pushed, t.Deleted, t.Failed, errMsg); err != nil {
				log.Printf("[SYNC] %s: failed to record run completion: %v", serverID, err)
			}
		}

		if c.servers != nil && errMsg == "" {
			if err := c.servers.MarkSynced(ctx, serverID, report.FinishedAt); err != nil {
				log.Printf("[SYNC] %s: failed to mark server synced: %v", serverID, err)
			}
		}
	}
}

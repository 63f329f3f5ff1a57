package http

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/syncer"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

// SyncController handles "sync now" and run history endpoints.
type SyncController struct {
	runner SyncRunner
	runs   RunHistory
	tasks  TaskQueue
}

func NewSyncController(runner SyncRunner, runs RunHistory, tasks TaskQueue) *SyncController {
	return &SyncController{runner: runner, runs: runs, tasks: tasks}
}

// ServerSummary is one server's share of a cycle.
type ServerSummary struct {
	ServerID string `json:"server_id"`
	syncer.Totals
	Errors []string `json:"errors,omitempty"`
}

// SyncResponse is the aggregate outcome of a cycle.
type SyncResponse struct {
	Trigger    string          `json:"trigger"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Totals     syncer.Totals   `json:"totals"`
	Servers    []ServerSummary `json:"servers"`
}

func newSyncResponse(report *syncer.CycleReport) SyncResponse {
	resp := SyncResponse{
		Trigger:    report.Trigger,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Totals:     report.Totals(),
		Servers:    make([]ServerSummary, 0, len(report.Servers)),
	}
	for id, s := range report.Servers {
		resp.Servers = append(resp.Servers, ServerSummary{ServerID: id, Totals: s.Totals(), Errors: s.Errors})
	}
	sort.Slice(resp.Servers, func(i, j int) bool { return resp.Servers[i].ServerID < resp.Servers[j].ServerID })
	return resp
}

// SyncNow handles POST /api/sync
// Runs a cycle and returns aggregate counts. With ?async=true the cycle is
// enqueued on the task queue and the task id is returned instead.
func (sc *SyncController) SyncNow(c *gin.Context) {
	if sc.runner.Running() {
		respondError(c, http.StatusConflict, "sync_in_progress", syncer.ErrCycleInProgress.Error())
		return
	}

	if c.Query("async") == "true" {
		if sc.tasks == nil {
			respondBadRequest(c, "task queue is disabled")
			return
		}
		ids, err := sc.tasks.Enqueue(tasks.SyncCycleTask{Trigger: syncer.TriggerManual})
		if err != nil {
			respondInternalError(c, err, "enqueue sync")
			return
		}
		respondAccepted(c, "sync enqueued", gin.H{"task_id": ids[0]})
		return
	}

	report, err := sc.runner.RunSync(c.Request.Context(), syncer.TriggerManual)
	if errors.Is(err, syncer.ErrCycleInProgress) {
		respondError(c, http.StatusConflict, "sync_in_progress", err.Error())
		return
	}
	if err != nil {
		respondInternalError(c, err, "run sync")
		return
	}

	c.JSON(http.StatusOK, newSyncResponse(report))
}

// Status handles GET /api/sync/status
func (sc *SyncController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"is_syncing": sc.runner.Running()})
}

// ListRuns handles GET /api/sync/runs?server_id=&limit=
func (sc *SyncController) ListRuns(c *gin.Context) {
	runs, err := sc.runs.ListRuns(c.Request.Context(), c.Query("server_id"), parseLimit(c, 50, 500))
	if err != nil {
		respondInternalError(c, err, "list sync runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun handles GET /api/sync/runs/:id
func (sc *SyncController) GetRun(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	run, err := sc.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "sync run", "get sync run")
		return
	}
	c.JSON(http.StatusOK, run)
}

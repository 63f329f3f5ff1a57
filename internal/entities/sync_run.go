package entities

import (
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SyncRun records one reconciliation cycle against one server.
type SyncRun struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ServerID    string     `gorm:"size:128;index" json:"server_id"`
	Trigger     string     `gorm:"size:20" json:"trigger"` // "manual", "scheduled", "cli"
	Status      RunStatus  `gorm:"size:20;index" json:"status"`
	Pulled      int        `json:"pulled"`
	Pushed      int        `json:"pushed"`
	Deleted     int        `json:"deleted"`
	Failed      int        `json:"failed"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/reading"
	"github.com/mrlokans/shelfsync/internal/syncer"
)

// This file consolidates the interfaces HTTP controllers depend on.
// Each is implemented by a service or repository wired in the entrypoint.

// ReadingService applies local edits. *reading.Service implements it.
type ReadingService interface {
	RegisterDownload(ctx context.Context, in reading.DownloadInput) (*entities.DownloadedBook, error)
	RemoveDownload(ctx context.Context, serverID, bookID string) error
	Downloads(ctx context.Context, serverID string) ([]entities.DownloadedBook, error)

	Progress(ctx context.Context, serverID, bookID string) (*entities.ReadProgress, error)
	RecordProgress(ctx context.Context, in reading.ProgressInput) (*entities.ReadProgress, error)

	Bookmarks(ctx context.Context, serverID, bookID string) ([]entities.Bookmark, error)
	AddBookmark(ctx context.Context, in reading.BookmarkInput) (*entities.Bookmark, error)
	RemoveBookmark(ctx context.Context, id string) error

	Annotations(ctx context.Context, serverID, bookID string) ([]entities.Annotation, error)
	AddAnnotation(ctx context.Context, in reading.AnnotationInput) (*entities.Annotation, error)
	EditAnnotation(ctx context.Context, id string, text *string) error
	RemoveAnnotation(ctx context.Context, id string) error
}

// SyncRunner runs reconciliation cycles. *syncer.Runner implements it.
type SyncRunner interface {
	RunSync(ctx context.Context, trigger string) (*syncer.CycleReport, error)
	Running() bool
}

// RunHistory reads recorded sync runs.
type RunHistory interface {
	ListRuns(ctx context.Context, serverID string, limit int) ([]entities.SyncRun, error)
	GetRun(ctx context.Context, id uint) (*entities.SyncRun, error)
}

// ServerStore manages the server registry.
type ServerStore interface {
	SaveServer(ctx context.Context, creds entities.ServerCredentials) error
	GetServer(ctx context.Context, id string) (*entities.Server, error)
	ListServers(ctx context.Context) ([]entities.Server, error)
	DeleteServer(ctx context.Context, id string) error
}

// AuditLog reads and records audit events.
type AuditLog interface {
	GetEvents(ctx context.Context, serverID string, eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
	LogSettings(serverID, action, description string)
}

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

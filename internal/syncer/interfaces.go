package syncer

import (
	"context"
	"time"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/remote"
)

// BookStore lists the books cached on this device.
type BookStore interface {
	DownloadedBookIDs(ctx context.Context, serverID string) ([]string, error)
}

// ProgressStore persists reading progress.
type ProgressStore interface {
	GetProgress(ctx context.Context, serverID, bookID string) (*entities.ReadProgress, error)
	UpsertProgress(ctx context.Context, p *entities.ReadProgress) error
	DeleteProgress(ctx context.Context, serverID, bookID string) error
	ClaimProgress(ctx context.Context, serverID string, excludeBookIDs []string, staleBefore time.Time) ([]entities.ReadProgress, error)
	SetProgressStatus(ctx context.Context, id uint, status entities.SyncStatus) error
}

// BookmarkStore persists bookmarks.
type BookmarkStore interface {
	ListBookmarks(ctx context.Context, serverID, bookID string) ([]entities.Bookmark, error)
	InsertBookmark(ctx context.Context, b *entities.Bookmark) error
	LinkBookmark(ctx context.Context, id, serverBookmarkID string) error
	DeleteBookmarks(ctx context.Context, ids []string) error
	ClaimBookmarks(ctx context.Context, serverID string, excludeBookIDs []string, staleBefore time.Time) ([]entities.Bookmark, error)
	ListDeletedBookmarks(ctx context.Context, serverID string, excludeBookIDs []string) ([]entities.Bookmark, error)
	SetBookmarkStatus(ctx context.Context, id string, status entities.SyncStatus) error
}

// AnnotationStore persists annotations.
type AnnotationStore interface {
	ListAnnotations(ctx context.Context, serverID, bookID string) ([]entities.Annotation, error)
	InsertAnnotation(ctx context.Context, a *entities.Annotation) error
	SaveAnnotation(ctx context.Context, a *entities.Annotation) error
	DeleteAnnotations(ctx context.Context, ids []string) error
	ClaimAnnotations(ctx context.Context, serverID string, excludeBookIDs []string, staleBefore time.Time) ([]entities.Annotation, error)
	ListDeletedAnnotations(ctx context.Context, serverID string, excludeBookIDs []string) ([]entities.Annotation, error)
	SetAnnotationStatus(ctx context.Context, id string, status entities.SyncStatus) error
}

// Stores groups the local repositories an Engine works against.
type Stores struct {
	Books       BookStore
	Progress    ProgressStore
	Bookmarks   BookmarkStore
	Annotations AnnotationStore
}

// Remote is the typed server API for one authenticated server.
// *remote.API implements it.
type Remote interface {
	MediaProgress(ctx context.Context, ids []string) ([]remote.MediaProgress, error)
	UpdateProgress(ctx context.Context, mediaID string, input remote.MediaProgressInput) error

	Bookmarks(ctx context.Context, mediaID string) ([]remote.Bookmark, error)
	CreateBookmark(ctx context.Context, input remote.CreateBookmarkInput) (string, error)
	DeleteBookmark(ctx context.Context, id string) error

	Annotations(ctx context.Context, mediaID string) ([]remote.Annotation, error)
	CreateAnnotation(ctx context.Context, input remote.CreateAnnotationInput) (*remote.Annotation, error)
	UpdateAnnotation(ctx context.Context, id string, text *string) (*remote.Annotation, error)
	DeleteAnnotation(ctx context.Context, id string) error
}

// Reporter receives sync failures. Report must not block.
type Reporter interface {
	Report(err error, context map[string]any)
}

// RunRecorder keeps the history of per-server cycles.
type RunRecorder interface {
	StartRun(ctx context.Context, serverID, trigger string) (*entities.SyncRun, error)
	CompleteRun(ctx context.Context, id uint, pulled, pushed, deleted, failed int, errorMsg string) error
}

// ServerMarker records when a server last finished a clean cycle.
type ServerMarker interface {
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

var _ Remote = (*remote.API)(nil)

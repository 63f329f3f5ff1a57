package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/shelfsync/internal/audit"
	"github.com/mrlokans/shelfsync/internal/database/annotations"
	"github.com/mrlokans/shelfsync/internal/database/bookmarks"
	"github.com/mrlokans/shelfsync/internal/database/books"
	"github.com/mrlokans/shelfsync/internal/database/progress"
	"github.com/mrlokans/shelfsync/internal/database/servers"
	"github.com/mrlokans/shelfsync/internal/database/sync"
	"github.com/mrlokans/shelfsync/internal/http"
	"github.com/mrlokans/shelfsync/internal/reading"
	"github.com/mrlokans/shelfsync/internal/remote"
	"github.com/mrlokans/shelfsync/internal/scheduler"
	"github.com/mrlokans/shelfsync/internal/syncer"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Sync engine stores
var _ syncer.BookStore = (*books.Repository)(nil)
var _ syncer.ProgressStore = (*progress.Repository)(nil)
var _ syncer.BookmarkStore = (*bookmarks.Repository)(nil)
var _ syncer.AnnotationStore = (*annotations.Repository)(nil)

// Local edit stores
var _ reading.BookRegistry = (*books.Repository)(nil)
var _ reading.ProgressWriter = (*progress.Repository)(nil)
var _ reading.BookmarkWriter = (*bookmarks.Repository)(nil)
var _ reading.AnnotationWriter = (*annotations.Repository)(nil)

// Server registry
var _ syncer.ServerMarker = (*servers.Repository)(nil)
var _ syncer.CredentialSource = (*servers.Repository)(nil)
var _ http.ServerStore = (*servers.Repository)(nil)

// Run history
var _ syncer.RunRecorder = (*sync.Repository)(nil)
var _ http.RunHistory = (*sync.Repository)(nil)
var _ tasks.StaleRunCloser = (*sync.Repository)(nil)

// =============================================================================
// Remote Servers
// =============================================================================

var _ remote.Client = (*remote.GraphQLClient)(nil)
var _ syncer.Remote = (*remote.API)(nil)

// =============================================================================
// Audit Trail
// =============================================================================

var _ syncer.Reporter = (*audit.Service)(nil)
var _ syncer.CycleLogger = (*audit.Service)(nil)
var _ http.AuditLog = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.FailureReporter = (*audit.Service)(nil)

// =============================================================================
// Services & Background Work
// =============================================================================

var _ http.ReadingService = (*reading.Service)(nil)

var _ http.SyncRunner = (*syncer.Runner)(nil)
var _ http.SyncState = (*syncer.Runner)(nil)
var _ tasks.CycleRunner = (*syncer.Runner)(nil)

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.TaskQueue = (*tasks.Client)(nil)

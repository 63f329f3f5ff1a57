// Package database provides the local store for cached reading state.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── books/           # Downloaded books per server
//	├── progress/        # Reading progress (one row per book and server)
//	├── bookmarks/       # Bookmarks with soft delete
//	├── annotations/     # Annotations with soft delete
//	├── servers/         # Server registry with encrypted tokens
//	├── sync/            # Sync run history
//	└── audit/           # Reported errors and sync events
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type over the shared *gorm.DB:
//
//	db, err := database.NewDatabase("./shelfsync.db")
//
//	progressRepo := progress.NewRepository(db.DB)
//	bookmarksRepo := bookmarks.NewRepository(db.DB)
//
// # Interface Implementations
//
// The sync engines depend on small store interfaces rather than these
// concrete types:
//
//   - books.Repository: implements syncer.BookStore
//   - progress.Repository: implements syncer.ProgressStore and reading.ProgressWriter
//   - bookmarks.Repository: implements syncer.BookmarkStore and reading.BookmarkWriter
//   - annotations.Repository: implements syncer.AnnotationStore and reading.AnnotationWriter
//   - sync.Repository: implements syncer.RunRecorder
//
// The compile-time checks live in internal/interfaces.
//
// # Push claims
//
// Claim methods select rows in UNSYNCED or ERROR (plus SYNCING rows whose claim
// went stale) and mark them SYNCING inside one transaction before returning, so
// a concurrent push pass cannot claim the same rows.
package database

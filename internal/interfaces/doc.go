// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Sync Engine Interfaces (internal/syncer/interfaces.go)
//
//   - BookStore: Downloaded books per server
//   - ProgressStore: Local reading progress with sync status
//   - BookmarkStore: Local bookmarks, linked to server ids once pushed
//   - AnnotationStore: Local annotations, linked to server ids once pushed
//   - Remote: Typed server API (implemented by remote.API over remote.GraphQLClient)
//   - Reporter: Non-blocking failure sink (implemented by audit.Service)
//   - RunRecorder: Per-server run history (implemented by database/sync)
//   - ServerMarker: Records the last successful sync per server
//
// ## Local Edit Interfaces (internal/reading/service.go)
//
//   - BookRegistry, ProgressWriter, BookmarkWriter, AnnotationWriter
//
// Every local edit leaves the row UNSYNCED so the next cycle pushes it.
//
// ## HTTP Interfaces (internal/http/stores.go)
//
//   - ReadingService, SyncRunner, RunHistory, ServerStore, AuditLog, TaskQueue
//
// ## Background Work Interfaces
//
//   - CycleRunner: Runs one sync cycle (internal/tasks/sync_cycle.go)
//   - AuditEventCleaner, StaleRunCloser: Housekeeping tasks (internal/tasks/)
//   - TaskQueue: Durable queue used by the scheduler (internal/scheduler/sync.go)
//
// # Adding a New Synced Item Type
//
//  1. Add the entity with a SyncStatus and server id column in internal/entities/
//  2. Add a repository under internal/database/ and register its model in database.Models
//  3. Add the remote operations to remote.API and the syncer.Remote interface
//  4. Add Pull/Push steps to syncer.Engine and call them from Coordinator.RunCycle
//  5. Add a compile-time check below
package interfaces

// Package syncer reconciles locally cached reading state with remote servers.
//
// Three kinds of state are synced per (book, server): reading progress,
// bookmarks and annotations. Each has a pull step, which applies server state
// to the local store, and a push step, which sends pending local changes.
//
// # Status model
//
// Every synced row carries an entities.SyncStatus. Local edits set UNSYNCED.
// A push claims pending rows by moving them to SYNCING in one transaction,
// then settles each row as SYNCED or ERROR. ERROR rows are retried by the
// next push. Pulled rows are written as SYNCED directly. Rows stuck in
// SYNCING longer than Options.StaleClaimAfter are claimed again.
//
// # Cycle
//
// Coordinator.RunCycle drives one pass across every configured server:
//
//  1. pull progress for all servers
//  2. push progress, skipping books whose pull failed on that server
//  3. pull then push bookmarks
//  4. pull then push annotations
//
// Servers run concurrently up to Options.MaxParallelServers, each inside its
// own panic boundary. Within one server, remote calls go through a WorkQueue
// bounded by Options.Concurrency.
package syncer

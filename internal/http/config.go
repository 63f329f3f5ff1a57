package http

import (
	"github.com/mrlokans/shelfsync/internal/database"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Reading  ReadingService
	Sync     SyncRunner
	Runs     RunHistory
	Servers  ServerStore

	// Audit log (optional)
	Audit AuditLog

	// Task queue client (optional). Without it POST /api/sync?async=true is rejected.
	Tasks TaskQueue

	// Throttles POST /api/sync per client (optional)
	SyncLimiter *RateLimiter

	// Application info
	Version string
}

package syncer

import (
	"log"
	"sync"
	"time"
)

const (
	DefaultStaleClaimAfter    = 15 * time.Minute
	DefaultConcurrency        = 1
	DefaultMaxParallelServers = 4
)

// Options tune an Engine and the Coordinator.
type Options struct {
	// StaleClaimAfter is how long a SYNCING row may stay claimed before the
	// next push treats its claim as abandoned.
	StaleClaimAfter time.Duration
	// Concurrency bounds in-flight remote calls within one server.
	Concurrency int
	// MaxParallelServers bounds how many servers sync at once.
	MaxParallelServers int
}

func (o Options) withDefaults() Options {
	if o.StaleClaimAfter <= 0 {
		o.StaleClaimAfter = DefaultStaleClaimAfter
	}
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxParallelServers < 1 {
		o.MaxParallelServers = DefaultMaxParallelServers
	}
	return o
}

// Engine syncs reading state between the local store and one server.
type Engine struct {
	serverID string
	remote   Remote
	stores   Stores
	reporter Reporter
	queue    *WorkQueue
	opts     Options
	now      func() time.Time

	// mu serialises counter updates from queued tasks.
	mu sync.Mutex
}

// NewEngine creates an engine for one server. reporter may be nil.
func NewEngine(serverID string, remote Remote, stores Stores, reporter Reporter, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		serverID: serverID,
		remote:   remote,
		stores:   stores,
		reporter: reporter,
		queue:    NewWorkQueue(opts.Concurrency),
		opts:     opts,
		now:      time.Now,
	}
}

// ServerID returns the server this engine syncs with.
func (e *Engine) ServerID() string {
	return e.serverID
}

func (e *Engine) staleBefore() time.Time {
	return e.now().Add(-e.opts.StaleClaimAfter)
}

func (e *Engine) locked(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// report logs a failure and hands it to the reporter without waiting.
func (e *Engine) report(err error, operation string, fields map[string]any) {
	log.Printf("[SYNC] %s: %s failed: %v", e.serverID, operation, err)
	if e.reporter == nil {
		return
	}

	ctx := map[string]any{
		"server_id": e.serverID,
		"operation": operation,
	}
	for k, v := range fields {
		ctx[k] = v
	}
	e.reporter.Report(err, ctx)
}

func bookFields(bookID string) map[string]any {
	return map[string]any{"book_id": bookID}
}

func recordFields(kind, id, bookID string) map[string]any {
	return map[string]any{"entity_type": kind, "entity_id": id, "book_id": bookID}
}

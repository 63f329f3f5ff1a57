// Package tasks runs background work on a backlite queue stored in its own
// SQLite database: scheduled sync cycles and housekeeping.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client owns the task database and the backlite workers that drain it.
type Client struct {
	backlite *backlite.Client
	db       *sql.DB
	workers  int

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewClient opens the task database at dbPath and installs the queue schema.
// Queues must be registered with Register before Start.
func NewClient(dbPath string, cfg Config) (*Client, error) {
	db, err := openTaskDB(dbPath, cfg.Workers)
	if err != nil {
		return nil, err
	}

	bl, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          taskLogger{},
	})
	if err == nil {
		err = bl.Install()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up task queue: %w", err)
	}

	return &Client{backlite: bl, db: db, workers: cfg.Workers}, nil
}

// openTaskDB opens the SQLite file in WAL mode with enough connections for
// every worker plus enqueues from the scheduler and HTTP handlers.
func openTaskDB(dbPath string, workers int) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create tasks directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}
	db.SetMaxOpenConns(workers + 4)
	db.SetMaxIdleConns(workers + 1)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Register adds queues to the client.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.backlite.Register(q)
	}
}

// Start launches the workers and returns immediately. Calling it again is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	c.backlite.Start(ctx)
	log.Printf("[TASK] Queue started with %d workers", c.workers)
}

// Stop waits for running tasks until ctx expires. It reports whether every
// worker finished in time.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()
	if !started {
		return true
	}

	if !c.backlite.Stop(ctx) {
		log.Println("[TASK] Queue stopped before all tasks finished")
		return false
	}
	log.Println("[TASK] Queue stopped")
	return true
}

// Close releases the task database. Call after Stop.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// Enqueue saves tasks immediately and returns their ids.
func (c *Client) Enqueue(tasks ...backlite.Task) ([]string, error) {
	ids, err := c.backlite.Add(tasks...).Save()
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", queueNames(tasks), err)
	}
	return ids, nil
}

// Status returns the status of a task by id.
func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.backlite.Status(ctx, taskID)
}

func queueNames(tasks []backlite.Task) string {
	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.Config().Name
	}
	return strings.Join(names, ",")
}

// taskLogger adapts backlite's key/value logging to the [TASK] log lines.
type taskLogger struct{}

func (taskLogger) Info(message string, params ...any) {
	log.Printf("[TASK] %s%s", message, formatParams(params))
}

func (taskLogger) Error(message string, params ...any) {
	log.Printf("[TASK ERROR] %s%s", message, formatParams(params))
}

func formatParams(params []any) string {
	var b strings.Builder
	for i := 0; i < len(params); i += 2 {
		if i+1 < len(params) {
			fmt.Fprintf(&b, " %v=%v", params[i], params[i+1])
		} else {
			fmt.Fprintf(&b, " %v", params[i])
		}
	}
	return b.String()
}

package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// CredentialSource lists the configured servers with decrypted tokens.
type CredentialSource interface {
	Credentials(ctx context.Context) ([]entities.ServerCredentials, error)
}

// CycleLogger records finished cycles. audit.Service implements it.
type CycleLogger interface {
	LogCycle(report *CycleReport)
}

// Runner loads the configured servers and runs a cycle against all of them.
// It is the single entry point the scheduler, task queue, HTTP API and CLI use.
type Runner struct {
	coordinator *Coordinator
	creds       CredentialSource
	cycles      CycleLogger
	clients     func([]entities.ServerCredentials) map[string]Remote
}

// NewRunner creates a Runner. cycles may be nil.
func NewRunner(coordinator *Coordinator, creds CredentialSource, cycles CycleLogger) *Runner {
	return &Runner{
		coordinator: coordinator,
		creds:       creds,
		cycles:      cycles,
		clients:     ClientsFromCredentials,
	}
}

// WithClientFactory replaces how remote clients are built from credentials.
func (r *Runner) WithClientFactory(fn func([]entities.ServerCredentials) map[string]Remote) *Runner {
	r.clients = fn
	return r
}

// Running reports whether a cycle is in flight.
func (r *Runner) Running() bool {
	return r.coordinator.Running()
}

// RunSync runs one cycle across every configured server.
// It returns ErrCycleInProgress when another cycle is still running.
func (r *Runner) RunSync(ctx context.Context, trigger string) (*CycleReport, error) {
	if r.coordinator.Running() {
		return nil, ErrCycleInProgress
	}

	creds, err := r.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load servers: %w", err)
	}
	if len(creds) == 0 {
		log.Printf("[SYNC] No servers configured, nothing to sync")
	}

	report, err := r.coordinator.RunCycle(ctx, r.clients(creds), trigger)
	if err != nil {
		return nil, err
	}
	if r.cycles != nil {
		r.cycles.LogCycle(report)
	}
	return report, nil
}

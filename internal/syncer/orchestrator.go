package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Outcome is one server's result from a fan-out. Err is set when the task
// panicked, in which case Result is the zero value.
type Outcome[R any] struct {
	Result R
	Err    error
}

// FanOut runs fn once per server concurrently, at most limit at a time, and
// collects each server's outcome. A panic in one server's task is recovered
// into that server's Err and does not affect the others.
func FanOut[C, R any](ctx context.Context, clients map[string]C, limit int, fn func(ctx context.Context, serverID string, client C) R) map[string]Outcome[R] {
	outcomes := make(map[string]Outcome[R], len(clients))
	if len(clients) == 0 {
		return outcomes
	}
	if limit < 1 {
		limit = 1
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(limit)
	for serverID, client := range clients {
		p.Go(func() {
			var out Outcome[R]
			var catcher panics.Catcher
			catcher.Try(func() {
				out.Result = fn(ctx, serverID, client)
			})
			if r := catcher.Recovered(); r != nil {
				out.Err = fmt.Errorf("sync for server %s panicked: %v", serverID, r.Value)
				log.Printf("[SYNC ERROR] %v\n%s", out.Err, r.Stack)
			}

			mu.Lock()
			outcomes[serverID] = out
			mu.Unlock()
		})
	}
	p.Wait()

	return outcomes
}

package syncer

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// WorkQueue runs per-record work for one server with a bound on how many
// tasks are in flight. With a limit of 1 tasks run one at a time in
// submission order.
type WorkQueue struct {
	limit int
}

// NewWorkQueue creates a queue. A limit below 1 is treated as 1.
func NewWorkQueue(limit int) *WorkQueue {
	if limit < 1 {
		limit = 1
	}
	return &WorkQueue{limit: limit}
}

// Limit returns the in-flight bound.
func (q *WorkQueue) Limit() int {
	return q.limit
}

// Each runs fn for every item and waits for all of them. A panic in fn is
// re-raised after the remaining tasks finish.
func Each[T any](ctx context.Context, q *WorkQueue, items []T, fn func(context.Context, T)) {
	if len(items) == 0 {
		return
	}
	p := pool.New().WithMaxGoroutines(q.limit)
	for _, item := range items {
		p.Go(func() {
			fn(ctx, item)
		})
	}
	p.Wait()
}

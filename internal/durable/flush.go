package durable

import (
	"context"
	"sync"

	"github.com/grailbio/base/sync/ctxsync"

	"objectstorage/internal/core/domain"
)

// FlushCoordinator serializes physical flushes of one stream. Waiters are
// not served in any particular order.
type FlushCoordinator struct {
	mu ctxsync.Mutex
}

// Release gives up a held FlushCoordinator. Calling it more than once is
// harmless, and it may be called from any goroutine.
type Release func()

// Acquire blocks until the coordinator is free or ctx is done.
func (c *FlushCoordinator) Acquire(ctx context.Context) (Release, error) {
	if err := c.mu.Lock(ctx); err != nil {
		return nil, domain.Canceled(err, "waiting for flush lock")
	}
	var once sync.Once
	return func() { once.Do(c.mu.Unlock) }, nil
}

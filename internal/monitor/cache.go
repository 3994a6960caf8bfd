package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// refresher produces the blocker list for one snapshot refresh.
type refresher interface {
	Inspect(ctx context.Context, includeSession bool) ([]domain.PowerRequestBlocker, error)
}

// SnapshotCache holds the last computed blocker verdict and coordinates
// background refreshes. Reads are lock-free and never block; a refresh
// request arriving while one is in flight is dropped, so at most one
// diagnostic invocation runs at any instant. Every snapshot is an immutable
// value replaced wholesale, so readers never observe a partial update.
type SnapshotCache struct {
	current    atomic.Pointer[domain.Snapshot]
	refreshing atomic.Bool

	inspector refresher
	logger    *zap.Logger
}

// NewSnapshotCache creates a cache seeded with an empty unblocked snapshot.
func NewSnapshotCache(inspector refresher, logger *zap.Logger) *SnapshotCache {
	c := &SnapshotCache{
		inspector: inspector,
		logger:    logger,
	}
	c.current.Store(&domain.Snapshot{Timestamp: time.Now().UTC()})
	return c
}

// Current returns the last published snapshot, regardless of age.
func (c *SnapshotCache) Current() domain.Snapshot {
	return *c.current.Load()
}

// TriggerRefresh starts a background refresh and reports whether this call
// claimed it. When a refresh is already in flight the request is coalesced
// into it and the next tick retries.
func (c *SnapshotCache) TriggerRefresh(ctx context.Context) bool {
	if !c.refreshing.CompareAndSwap(false, true) {
		return false
	}
	go c.refresh(ctx)
	return true
}

// refresh computes and publishes one snapshot. Any failure, including a
// panic, is converted into a blocked snapshot here; nothing propagates to
// the poll loop.
func (c *SnapshotCache) refresh(ctx context.Context) {
	defer c.refreshing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot refresh panicked", zap.Any("panic", r))
			c.publish(domain.Snapshot{
				Timestamp:   time.Now().UTC(),
				HasBlockers: true,
				Summary:     fmt.Sprintf("refresh failed: %v", r),
			})
		}
	}()

	blockers, err := c.inspector.Inspect(ctx, true)
	if err != nil {
		c.logger.Warn("snapshot refresh failed", zap.Error(err))
		c.publish(domain.Snapshot{
			Timestamp:   time.Now().UTC(),
			HasBlockers: true,
			Summary:     err.Error(),
		})
		return
	}

	c.publish(domain.Snapshot{
		Timestamp:   time.Now().UTC(),
		HasBlockers: len(blockers) > 0,
		Summary:     Summarize(blockers),
	})
}

func (c *SnapshotCache) publish(s domain.Snapshot) {
	c.current.Store(&s)
}

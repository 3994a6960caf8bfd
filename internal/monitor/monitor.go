package monitor

import (
	"context"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// Monitor is the read-only surface over the decision core, backing the
// status file the agent publishes and the one-shot inspection commands. It
// never mutates core state on behalf of a caller.
type Monitor struct {
	cache     *SnapshotCache
	inspector *Inspector
}

// NewMonitor groups a cache and its inspector behind the read surface.
func NewMonitor(cache *SnapshotCache, inspector *Inspector) *Monitor {
	return &Monitor{cache: cache, inspector: inspector}
}

// BlockerStatus returns the cached verdict without blocking. With refresh
// set, a background refresh is kicked off first; the returned values still
// come from the previous snapshot, updated status arrives on a later read.
func (m *Monitor) BlockerStatus(ctx context.Context, refresh bool) (bool, string) {
	if refresh {
		m.cache.TriggerRefresh(ctx)
	}
	snap := m.cache.Current()
	return snap.HasBlockers, snap.Summary
}

// Snapshot returns the full cached snapshot.
func (m *Monitor) Snapshot() domain.Snapshot {
	return m.cache.Current()
}

// CurrentBlockers runs a synchronous inspection and returns the post-filter
// blocker list. Unlike BlockerStatus this blocks for the diagnostics
// invocation, so it is meant for interactive inspection, not the poll path.
func (m *Monitor) CurrentBlockers(ctx context.Context, includeSession bool) ([]domain.PowerRequestBlocker, error) {
	return m.inspector.Inspect(ctx, includeSession)
}

// ActiveOverrides returns a rendered view of the administrator override
// report.
func (m *Monitor) ActiveOverrides(ctx context.Context) (string, error) {
	return m.inspector.ActiveOverrides(ctx)
}

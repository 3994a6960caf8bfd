package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMonitor(diag fakeDiag) *Monitor {
	in := NewInspector(diag, nil, fakeSession(false), zap.NewNop())
	return NewMonitor(NewSnapshotCache(in, zap.NewNop()), in)
}

func TestMonitor_BlockerStatusServesCachedVerdict(t *testing.T) {
	m := newTestMonitor(fakeDiag{requests: "SYSTEM:\n[DRIVER] Legacy Kernel Caller\n"})
	ctx := context.Background()

	blocked, summary := m.BlockerStatus(ctx, false)
	assert.False(t, blocked, "initial snapshot is the unblocked default")
	assert.Empty(t, summary)

	m.BlockerStatus(ctx, true)
	require.Eventually(t, func() bool {
		blocked, _ := m.BlockerStatus(ctx, false)
		return blocked
	}, time.Second, 5*time.Millisecond, "refreshed verdict never landed")

	_, summary = m.BlockerStatus(ctx, false)
	assert.Equal(t, "SYSTEM: [DRIVER] Legacy Kernel Caller", summary)
	assert.True(t, m.Snapshot().HasBlockers)
}

func TestMonitor_CurrentBlockersIsSynchronous(t *testing.T) {
	m := newTestMonitor(fakeDiag{requests: "SYSTEM:\n[DRIVER] Legacy Kernel Caller\n"})

	blockers, err := m.CurrentBlockers(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
	assert.Equal(t, "Legacy Kernel Caller", blockers[0].Name)
}

func TestMonitor_ActiveOverridesDelegates(t *testing.T) {
	m := newTestMonitor(fakeDiag{overrides: "DRIVER\nRealtek Audio\nSYSTEM\n"})

	out, err := m.ActiveOverrides(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[DRIVER] Realtek Audio: SYSTEM", out)
}

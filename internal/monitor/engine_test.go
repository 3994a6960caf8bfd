package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

type fakeCache struct {
	mu       sync.Mutex
	snap     domain.Snapshot
	triggers int
}

func (f *fakeCache) TriggerRefresh(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return true
}

func (f *fakeCache) Current() domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeCache) set(blocked bool, summary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = domain.Snapshot{Timestamp: time.Now().UTC(), HasBlockers: blocked, Summary: summary}
}

func (f *fakeCache) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

type fakeIdle struct {
	mu  sync.Mutex
	d   time.Duration
	err error
}

func (f *fakeIdle) IdleDuration() (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.d, f.err
}

func (f *fakeIdle) set(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.d = d
}

type firedCounter struct {
	mu    sync.Mutex
	count int
}

func (c *firedCounter) fire(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *firedCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func newTestEngine(cache *fakeCache, idle *fakeIdle, threshold time.Duration) (*IdleDecisionEngine, *firedCounter) {
	fired := &firedCounter{}
	e := NewIdleDecisionEngine(cache, idle, time.Second, threshold, fired.fire, zap.NewNop())
	return e, fired
}

func TestEngine_FiresOnceUntilReset(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{d: 30 * time.Minute}
	engine, fired := newTestEngine(cache, idle, 20*time.Minute)
	ctx := context.Background()

	engine.Tick(ctx)
	engine.Tick(ctx)
	engine.Tick(ctx)
	assert.Equal(t, 1, fired.get(), "signal is edge-triggered, not level-triggered")

	engine.Reset()
	engine.Tick(ctx)
	assert.Equal(t, 2, fired.get(), "explicit reset re-arms the engine")
}

func TestEngine_BlockerSuppressesAndRearms(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{}
	engine, fired := newTestEngine(cache, idle, 20*time.Minute)
	ctx := context.Background()

	// Tick N: unblocked but below threshold.
	idle.set(10 * time.Minute)
	engine.Tick(ctx)
	assert.Equal(t, 0, fired.get())

	// Tick N+1: at threshold but a blocker appeared.
	idle.set(21 * time.Minute)
	cache.set(true, "SYSTEM: [DRIVER] Legacy Kernel Caller")
	engine.Tick(ctx)
	assert.Equal(t, 0, fired.get(), "blocker vetoes the signal")

	// Tick N+2: blocker cleared, still idle.
	cache.set(false, "")
	engine.Tick(ctx)
	assert.Equal(t, 1, fired.get(), "signal fires on the tick after the blocker clears")
}

func TestEngine_BlockerAfterFiringForcesRearm(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{d: 30 * time.Minute}
	engine, fired := newTestEngine(cache, idle, 20*time.Minute)
	ctx := context.Background()

	engine.Tick(ctx)
	require.Equal(t, 1, fired.get())

	// A blocker while fired re-arms without an explicit reset.
	cache.set(true, "EXECUTION: [PROCESS] backup.exe")
	engine.Tick(ctx)
	assert.Equal(t, 1, fired.get())

	cache.set(false, "")
	engine.Tick(ctx)
	assert.Equal(t, 2, fired.get(), "signal fires again once the blocker clears")
}

func TestEngine_IdleDropDoesNotRearm(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{d: 30 * time.Minute}
	engine, fired := newTestEngine(cache, idle, 20*time.Minute)
	ctx := context.Background()

	engine.Tick(ctx)
	require.Equal(t, 1, fired.get())

	// User input resets idle time; that alone must not re-arm.
	idle.set(time.Second)
	engine.Tick(ctx)
	idle.set(30 * time.Minute)
	engine.Tick(ctx)
	assert.Equal(t, 1, fired.get(), "only blockers or an explicit reset re-arm the engine")

	engine.Reset()
	engine.Tick(ctx)
	assert.Equal(t, 2, fired.get())
}

func TestEngine_TriggersRefreshEveryTick(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{d: time.Second}
	engine, _ := newTestEngine(cache, idle, 20*time.Minute)
	ctx := context.Background()

	engine.Tick(ctx)
	engine.Tick(ctx)
	engine.Tick(ctx)
	assert.Equal(t, 3, cache.triggerCount(), "cache stays warm even far below threshold")
}

func TestEngine_IdleProbeFailureSkipsEvaluation(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{err: errors.New("GetLastInputInfo: access denied")}
	engine, fired := newTestEngine(cache, idle, time.Minute)

	engine.Tick(context.Background())
	assert.Equal(t, 0, fired.get())
	assert.Equal(t, 1, cache.triggerCount(), "refresh still triggered before the probe")
}

func TestEngine_SetThresholdTakesEffectNextTick(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{d: 10 * time.Minute}
	engine, fired := newTestEngine(cache, idle, 20*time.Minute)
	ctx := context.Background()

	engine.Tick(ctx)
	require.Equal(t, 0, fired.get())

	engine.SetThreshold(5 * time.Minute)
	engine.Tick(ctx)
	assert.Equal(t, 1, fired.get())
}

func TestEngine_RunFiresAndStops(t *testing.T) {
	cache := &fakeCache{}
	idle := &fakeIdle{d: time.Hour}
	fired := &firedCounter{}
	engine := NewIdleDecisionEngine(cache, idle, 5*time.Millisecond, time.Minute, fired.fire, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return fired.get() == 1 },
		time.Second, time.Millisecond)

	engine.RestartClock()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
	assert.Equal(t, 1, fired.get())
}

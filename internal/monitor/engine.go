package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

const (
	// DefaultPollInterval is the decision engine's tick cadence.
	DefaultPollInterval = time.Second

	// DefaultIdleThreshold is how long the user must be idle before the
	// engine considers firing.
	DefaultIdleThreshold = 20 * time.Minute
)

// snapshotReader is the cache surface the engine needs.
type snapshotReader interface {
	TriggerRefresh(ctx context.Context) bool
	Current() domain.Snapshot
}

// IdleDecisionEngine polls user idle time on a fixed tick, keeps the snapshot
// cache warm, and emits a single edge-triggered signal when the idle
// threshold is crossed with no blockers outstanding.
//
// The engine latches after firing: repeated idle ticks do not re-emit until
// Reset is called. An outstanding blocker forces re-arming, so the signal can
// fire again once the blocker clears. Idle time falling below the threshold
// changes no state on its own.
type IdleDecisionEngine struct {
	cache  snapshotReader
	idle   domain.IdleSource
	onIdle func(idleFor time.Duration)
	logger *zap.Logger

	interval  time.Duration
	threshold atomic.Int64

	mu    sync.Mutex
	fired bool

	clockRestart chan struct{}
}

// NewIdleDecisionEngine assembles an engine. onIdle is invoked from the poll
// loop and must not block for long; the usual consumer hands off to the
// suspend flow.
func NewIdleDecisionEngine(cache snapshotReader, idle domain.IdleSource, interval, threshold time.Duration, onIdle func(idleFor time.Duration), logger *zap.Logger) *IdleDecisionEngine {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	e := &IdleDecisionEngine{
		cache:        cache,
		idle:         idle,
		onIdle:       onIdle,
		logger:       logger,
		interval:     interval,
		clockRestart: make(chan struct{}, 1),
	}
	e.threshold.Store(int64(threshold))
	return e
}

// Run drives the tick loop until the context is cancelled.
func (e *IdleDecisionEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("decision engine started",
		zap.Duration("interval", e.interval),
		zap.Duration("threshold", e.Threshold()))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("decision engine stopped")
			return
		case <-e.clockRestart:
			ticker.Reset(e.interval)
			e.logger.Info("polling clock restarted")
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick performs one evaluation: trigger a background refresh, read idle time,
// and fire if armed, over threshold, and unblocked.
func (e *IdleDecisionEngine) Tick(ctx context.Context) {
	e.cache.TriggerRefresh(ctx)

	idleFor, err := e.idle.IdleDuration()
	if err != nil {
		e.logger.Warn("idle probe failed", zap.Error(err))
		return
	}
	if idleFor < e.Threshold() {
		return
	}

	snap := e.cache.Current()
	if snap.HasBlockers {
		e.rearm(snap)
		return
	}

	e.mu.Lock()
	if e.fired {
		e.mu.Unlock()
		return
	}
	e.fired = true
	e.mu.Unlock()

	e.logger.Info("idle threshold reached", zap.Duration("idle_for", idleFor))
	if e.onIdle != nil {
		e.onIdle(idleFor)
	}
}

// Reset re-arms the engine. Callers invoke it after acting on a fired signal,
// typically once the machine wakes from the suspend the signal led to.
func (e *IdleDecisionEngine) Reset() {
	e.mu.Lock()
	was := e.fired
	e.fired = false
	e.mu.Unlock()
	if was {
		e.logger.Debug("engine reset, re-armed")
	}
}

// RestartClock restarts the polling interval from now. Wired to the system
// resume notification so the first post-wake tick happens a full interval
// after wake.
func (e *IdleDecisionEngine) RestartClock() {
	select {
	case e.clockRestart <- struct{}{}:
	default:
	}
}

// SetThreshold changes the idle threshold. Takes effect on the next tick;
// the polling clock keeps running.
func (e *IdleDecisionEngine) SetThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	e.threshold.Store(int64(d))
}

// Threshold returns the current idle threshold.
func (e *IdleDecisionEngine) Threshold() time.Duration {
	return time.Duration(e.threshold.Load())
}

// rearm clears the fired latch while a blocker is outstanding.
func (e *IdleDecisionEngine) rearm(snap domain.Snapshot) {
	e.mu.Lock()
	was := e.fired
	e.fired = false
	e.mu.Unlock()
	if was {
		e.logger.Info("blocker active after firing, re-armed",
			zap.String("summary", snap.Summary))
	}
}

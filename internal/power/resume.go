// Package power owns the suspend transition and everything around it: wake
// detection, resume notification fan-out, and the user's pre/post-sleep hook
// commands.
package power

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

const (
	// DefaultSampleInterval is the wake detector's sampling cadence.
	DefaultSampleInterval = 2 * time.Second

	// DefaultWakeGap is the minimum jump between consecutive samples that
	// counts as having slept through a suspend.
	DefaultWakeGap = 10 * time.Second
)

// ResumeWatcher detects system wake by watching for gaps in its own sampling
// clock: a ticker that slept through a suspend observes a wall-clock jump far
// larger than its interval on the first tick after wake. Interested parties
// register callbacks through OnResume; each detected wake notifies all
// current subscribers once.
type ResumeWatcher struct {
	interval time.Duration
	gap      time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]func()
}

// NewResumeWatcher creates a watcher with the given sampling interval and
// wake gap. Zero values fall back to the defaults.
func NewResumeWatcher(interval, gap time.Duration, logger *zap.Logger) *ResumeWatcher {
	return NewResumeWatcherWithClock(interval, gap, time.Now, logger)
}

// NewResumeWatcherWithClock creates a watcher with an injectable clock (for
// testing).
func NewResumeWatcherWithClock(interval, gap time.Duration, now func() time.Time, logger *zap.Logger) *ResumeWatcher {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if gap <= 0 {
		gap = DefaultWakeGap
	}
	return &ResumeWatcher{
		interval: interval,
		gap:      gap,
		now:      now,
		logger:   logger,
		subs:     make(map[int]func()),
	}
}

// OnResume registers a callback invoked after each detected wake. The
// returned cancel function removes the subscription.
func (w *ResumeWatcher) OnResume(fn func()) (cancel func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Run samples the clock until the context is cancelled. Comparisons use the
// wall clock on purpose: the monotonic reading may pause across a suspend,
// which is exactly the jump being measured.
func (w *ResumeWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.now().Round(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := w.now().Round(0)
			if gap := now.Sub(last); gap > w.gap {
				w.logger.Info("system wake detected", zap.Duration("gap", gap))
				w.notify()
			}
			last = now
		}
	}
}

func (w *ResumeWatcher) notify() {
	w.mu.Lock()
	subs := make([]func(), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

var _ domain.ResumeNotifier = (*ResumeWatcher)(nil)

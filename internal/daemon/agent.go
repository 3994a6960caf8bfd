// Package daemon assembles and runs the dozeguard agent: the decision engine
// wired to the suspend flow, the resume watcher, the rule store, and the
// published status file.
package daemon

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/config"
	"github.com/jmelkko/dozeguard/internal/domain"
	"github.com/jmelkko/dozeguard/internal/monitor"
	"github.com/jmelkko/dozeguard/internal/power"
	"github.com/jmelkko/dozeguard/internal/probe"
	"github.com/jmelkko/dozeguard/internal/store"
)

// SnapshotSource is the cache surface the agent needs.
type SnapshotSource interface {
	TriggerRefresh(ctx context.Context) bool
	Current() domain.Snapshot
}

// AgentConfig holds the agent loop configuration.
type AgentConfig struct {
	PollInterval   time.Duration
	IdleThreshold  time.Duration
	StatusInterval time.Duration // how often the status file is republished
	Hibernate      bool
}

// DefaultAgentConfig returns the default agent configuration.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		PollInterval:   monitor.DefaultPollInterval,
		IdleThreshold:  monitor.DefaultIdleThreshold,
		StatusInterval: 5 * time.Second,
	}
}

// AgentConfigFrom maps the loaded file configuration onto the agent loop.
func AgentConfigFrom(cfg config.Config) AgentConfig {
	return AgentConfig{
		PollInterval:   cfg.Monitor.PollInterval(),
		IdleThreshold:  cfg.Monitor.IdleThreshold(),
		StatusInterval: 5 * time.Second,
		Hibernate:      cfg.Suspend.Hibernate,
	}
}

// Agent is the long-running dozeguard process. It owns the decision engine
// and acts on its idle signal: record the decision, run the pre-sleep hook,
// suspend, and re-arm after wake.
type Agent struct {
	config AgentConfig

	engine    *monitor.IdleDecisionEngine
	cache     SnapshotSource
	idle      domain.IdleSource
	suspender domain.Suspender
	hooks     *power.HookRunner
	resume    *power.ResumeWatcher
	ruleStore domain.RuleStore
	status    *store.StatusFile
	logger    *zap.Logger

	version   string
	startedAt time.Time
	hibernate atomic.Bool

	suspendRequests chan time.Duration
}

// New assembles a production agent from the loaded configuration.
func New(cfg config.Config, version string, logger *zap.Logger) (*Agent, error) {
	ruleStore, err := store.Open(cfg.Store.Path, cfg.Store.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("open rule store: %w", err)
	}

	diag := probe.NewPowercfg(cfg.Monitor.PowercfgPath, cfg.Monitor.DiagnosticsTimeout(), logger)
	session := probe.NewSessionProbe(logger)
	inspector := monitor.NewInspector(diag, ruleStore, session, logger)
	cache := monitor.NewSnapshotCache(inspector, logger)

	hooks := power.NewHookRunner(cfg.Suspend.PreSleepCommand, cfg.Suspend.PostWakeCommand, cfg.Suspend.HookTimeout(), logger)
	resume := power.NewResumeWatcher(power.DefaultSampleInterval, power.DefaultWakeGap, logger)

	return NewAgentWithDeps(
		AgentConfigFrom(cfg),
		cache,
		probe.NewIdleSource(),
		power.NewSuspender(),
		hooks,
		resume,
		ruleStore,
		store.NewStatusFile(config.StatusPath()),
		version,
		logger,
	), nil
}

// NewAgentWithDeps assembles an agent with injectable collaborators (for
// testing).
func NewAgentWithDeps(
	cfg AgentConfig,
	cache SnapshotSource,
	idle domain.IdleSource,
	suspender domain.Suspender,
	hooks *power.HookRunner,
	resume *power.ResumeWatcher,
	ruleStore domain.RuleStore,
	status *store.StatusFile,
	version string,
	logger *zap.Logger,
) *Agent {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 5 * time.Second
	}

	a := &Agent{
		config:          cfg,
		cache:           cache,
		idle:            idle,
		suspender:       suspender,
		hooks:           hooks,
		resume:          resume,
		ruleStore:       ruleStore,
		status:          status,
		version:         version,
		logger:          logger,
		suspendRequests: make(chan time.Duration, 1),
	}
	a.hibernate.Store(cfg.Hibernate)
	a.engine = monitor.NewIdleDecisionEngine(cache, idle, cfg.PollInterval, cfg.IdleThreshold, a.queueSuspend, logger)
	return a
}

// Run starts the agent and blocks until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.startedAt = time.Now().UTC()
	a.recordEvent(domain.EventAgentStart, "version "+a.version)
	a.logger.Info("agent started",
		zap.Int("pid", os.Getpid()),
		zap.String("version", a.version),
		zap.Duration("idle_threshold", a.engine.Threshold()))

	cancelResume := a.resume.OnResume(a.onWake)
	defer cancelResume()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.resume.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.engine.Run(ctx)
	}()

	a.publishStatus()
	statusTicker := time.NewTicker(a.config.StatusInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping")
			a.recordEvent(domain.EventAgentStop, "")
			if err := a.status.Clear(); err != nil {
				a.logger.Warn("could not clear status file", zap.Error(err))
			}
			wg.Wait()
			return ctx.Err()

		case <-statusTicker.C:
			a.publishStatus()

		case idleFor := <-a.suspendRequests:
			a.suspendFlow(ctx, idleFor)
		}
	}
}

// Reload applies a freshly loaded configuration to the running agent. Only
// the idle threshold and the hibernate switch apply live; cadence or path
// changes need a restart.
func (a *Agent) Reload(cfg config.Config) {
	a.engine.SetThreshold(cfg.Monitor.IdleThreshold())
	a.hibernate.Store(cfg.Suspend.Hibernate)
	a.logger.Info("configuration reloaded",
		zap.Duration("idle_threshold", cfg.Monitor.IdleThreshold()),
		zap.Bool("hibernate", cfg.Suspend.Hibernate))
}

// Close releases the agent's persistent resources.
func (a *Agent) Close() error {
	if a.ruleStore != nil {
		return a.ruleStore.Close()
	}
	return nil
}

// queueSuspend hands a fired idle signal from the poll loop to the agent
// loop. The engine stays latched until the flow resets it, so a pending
// request is never superseded by a second one.
func (a *Agent) queueSuspend(idleFor time.Duration) {
	select {
	case a.suspendRequests <- idleFor:
	default:
	}
}

// suspendFlow acts on a fired idle signal: record it, run the pre-sleep
// hook, suspend, and on wake run the post-wake hook and re-arm the engine.
func (a *Agent) suspendFlow(ctx context.Context, idleFor time.Duration) {
	hibernate := a.hibernate.Load()
	a.recordEvent(domain.EventIdleFired, fmt.Sprintf("idle for %s", idleFor.Round(time.Second)))

	a.hooks.RunPre(ctx)
	a.publishStatus()

	mode := "suspend"
	if hibernate {
		mode = "hibernate"
	}
	// Written ahead of the call: the process is frozen for the duration of
	// the suspend, so there is no after-the-fact moment on the way down.
	a.recordEvent(domain.EventSuspend, mode)
	a.logger.Info("entering low-power state", zap.String("mode", mode))

	if err := a.suspender.Suspend(hibernate); err != nil {
		// Stay latched: the usual causes (missing privilege, unsupported
		// platform) are permanent, and resetting here would retry the failed
		// call on every following tick.
		a.logger.Error("suspend failed", zap.Error(err))
		return
	}

	a.logger.Info("system woke from suspend")
	a.hooks.RunPost(ctx)
	a.engine.Reset()
	a.publishStatus()
}

// onWake runs on every detected system wake, whether or not this agent
// initiated the sleep.
func (a *Agent) onWake() {
	a.recordEvent(domain.EventResume, "")
	a.engine.RestartClock()
}

// publishStatus writes the current agent state to the status file.
func (a *Agent) publishStatus() {
	idleFor, err := a.idle.IdleDuration()
	if err != nil {
		idleFor = 0
	}
	snap := a.cache.Current()

	st := store.AgentStatus{
		PID:              os.Getpid(),
		Version:          a.version,
		StartedAt:        a.startedAt,
		UpdatedAt:        time.Now().UTC(),
		IdleSeconds:      int64(idleFor / time.Second),
		ThresholdSeconds: int64(a.engine.Threshold() / time.Second),
		HasBlockers:      snap.HasBlockers,
		BlockerSummary:   snap.Summary,
		SnapshotAt:       snap.Timestamp,
	}
	if err := a.status.Write(st); err != nil {
		a.logger.Warn("could not publish status", zap.Error(err))
	}
}

func (a *Agent) recordEvent(kind domain.EventKind, detail string) {
	if a.ruleStore == nil {
		return
	}
	if err := a.ruleStore.RecordEvent(kind, detail); err != nil {
		a.logger.Warn("could not record event",
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

package power

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/probe"
)

// DefaultHookTimeout bounds a single hook command. A hook that overruns is
// killed and logged; the suspend flow continues either way.
const DefaultHookTimeout = 30 * time.Second

// HookRunner executes the user's pre-sleep and post-wake commands through the
// platform shell. Hooks are best effort: a failing or overrunning hook is
// logged and never blocks the suspend decision itself.
type HookRunner struct {
	pre     string
	post    string
	timeout time.Duration
	runner  probe.CommandRunner
	logger  *zap.Logger
}

// NewHookRunner creates a runner for the configured hook command lines.
// Empty command lines disable the corresponding hook.
func NewHookRunner(pre, post string, timeout time.Duration, logger *zap.Logger) *HookRunner {
	return NewHookRunnerWithRunner(pre, post, timeout, probe.RealCommandRunner{}, logger)
}

// NewHookRunnerWithRunner creates a runner with an injectable command runner
// (for testing).
func NewHookRunnerWithRunner(pre, post string, timeout time.Duration, runner probe.CommandRunner, logger *zap.Logger) *HookRunner {
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	return &HookRunner{
		pre:     pre,
		post:    post,
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

// RunPre executes the pre-sleep hook, if configured.
func (h *HookRunner) RunPre(ctx context.Context) {
	h.run(ctx, "pre_sleep", h.pre)
}

// RunPost executes the post-wake hook, if configured.
func (h *HookRunner) RunPost(ctx context.Context) {
	h.run(ctx, "post_wake", h.post)
}

func (h *HookRunner) run(ctx context.Context, label, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	name, args := shellCommand(line)
	out, err := h.runner.CombinedOutput(ctx, name, args...)
	if err != nil {
		h.logger.Warn("hook command failed",
			zap.String("hook", label),
			zap.String("command", line),
			zap.ByteString("output", out),
			zap.Error(err))
		return
	}
	h.logger.Info("hook command completed", zap.String("hook", label))
}

// Package probe implements the OS-facing signal sources: power-diagnostics
// invocation, user idle time, remote-session detection, and best-effort
// process resolution. Everything here is a thin I/O boundary; interpretation
// of the captured text lives in the report package.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

const (
	// DefaultPowercfgPath resolves through PATH; the config file may pin an
	// absolute location instead.
	DefaultPowercfgPath = "powercfg"

	// DefaultDiagnosticsTimeout bounds a single tool invocation. On timeout
	// the process is killed and the invocation reported as failed.
	DefaultDiagnosticsTimeout = 4 * time.Second

	requestsArg  = "/requests"
	overridesArg = "/requestsoverride"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	// CombinedOutput runs the command and returns interleaved stdout/stderr.
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands.
type RealCommandRunner struct{}

// CombinedOutput runs the command, killing it when the context expires.
func (RealCommandRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)
	return cmd.CombinedOutput()
}

// Powercfg invokes the system power-diagnostics tool with a bounded timeout
// and captures its output. It implements domain.DiagnosticsSource; it does no
// parsing of its own.
type Powercfg struct {
	path    string
	timeout time.Duration
	runner  CommandRunner
	logger  *zap.Logger
}

// NewPowercfg creates a diagnostics source for the given tool path.
// Zero values fall back to DefaultPowercfgPath and DefaultDiagnosticsTimeout.
func NewPowercfg(path string, timeout time.Duration, logger *zap.Logger) *Powercfg {
	return NewPowercfgWithRunner(path, timeout, RealCommandRunner{}, logger)
}

// NewPowercfgWithRunner creates a diagnostics source with an injectable
// command runner (for testing).
func NewPowercfgWithRunner(path string, timeout time.Duration, runner CommandRunner, logger *zap.Logger) *Powercfg {
	if path == "" {
		path = DefaultPowercfgPath
	}
	if timeout <= 0 {
		timeout = DefaultDiagnosticsTimeout
	}
	return &Powercfg{
		path:    path,
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

// RequestsReport returns the raw "active power requests" report.
func (p *Powercfg) RequestsReport(ctx context.Context) (string, error) {
	return p.run(ctx, requestsArg)
}

// OverridesReport returns the raw "request overrides" report.
func (p *Powercfg) OverridesReport(ctx context.Context) (string, error) {
	return p.run(ctx, overridesArg)
}

func (p *Powercfg) run(ctx context.Context, arg string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := p.runner.CombinedOutput(ctx, p.path, arg)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s %s timed out after %s", p.path, arg, p.timeout)
		}
		// powercfg writes its denial reason (typically missing administrator
		// rights) to the captured output; carry it into the error text since
		// that text becomes the blocked snapshot's summary.
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return "", fmt.Errorf("%s %s: %v: %s", p.path, arg, err, firstLine(msg))
		}
		return "", fmt.Errorf("%s %s: %w", p.path, arg, err)
	}

	p.logger.Debug("diagnostics report captured",
		zap.String("arg", arg),
		zap.Duration("elapsed", elapsed),
		zap.Int("bytes", len(out)))

	return string(out), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// Ensure Powercfg implements domain.DiagnosticsSource.
var _ domain.DiagnosticsSource = (*Powercfg)(nil)

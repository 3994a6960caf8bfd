package monitor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
	"github.com/jmelkko/dozeguard/internal/report"
	"github.com/jmelkko/dozeguard/internal/rules"
)

// Inspector runs one full blocker-collection cycle: capture both diagnostics
// reports, parse them, prune overridden and ignored entries, and fold in the
// remote-session probe. Each call builds its lists fresh; nothing is retained
// between cycles.
type Inspector struct {
	diag    domain.DiagnosticsSource
	ruleSrc domain.RuleSource
	session domain.SessionProbe
	logger  *zap.Logger
}

// NewInspector wires an inspection pipeline. ruleSrc may be nil, in which
// case no ignore filtering is applied.
func NewInspector(diag domain.DiagnosticsSource, ruleSrc domain.RuleSource, session domain.SessionProbe, logger *zap.Logger) *Inspector {
	return &Inspector{
		diag:    diag,
		ruleSrc: ruleSrc,
		session: session,
		logger:  logger,
	}
}

// Inspect returns the post-filter blocker list. includeSession controls
// whether an active remote-desktop session is folded in as a synthetic entry.
// A diagnostics failure is returned to the caller; the cache converts it into
// a blocked snapshot.
func (in *Inspector) Inspect(ctx context.Context, includeSession bool) ([]domain.PowerRequestBlocker, error) {
	requestsRaw, err := in.diag.RequestsReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("requests report: %w", err)
	}
	overridesRaw, err := in.diag.OverridesReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("overrides report: %w", err)
	}

	entries := report.ParseRequests(requestsRaw)
	entries = rules.ApplyOverrides(entries, report.ParseOverrides(overridesRaw))
	entries = rules.ApplyIgnoreRules(entries, in.ignoreRules())

	blockers := make([]domain.PowerRequestBlocker, 0, len(entries)+1)
	for _, e := range entries {
		blockers = append(blockers, domain.PowerRequestBlocker{
			Section:    e.Section,
			CallerType: e.CallerType,
			Name:       e.Name,
			RawLine:    e.RawLine,
		})
	}

	if includeSession && in.session != nil && in.session.RemoteActive() {
		blockers = append(blockers, RemoteSessionBlocker())
	}

	return blockers, nil
}

// ActiveOverrides renders the administrator override report as one line per
// rule.
func (in *Inspector) ActiveOverrides(ctx context.Context) (string, error) {
	raw, err := in.diag.OverridesReport(ctx)
	if err != nil {
		return "", fmt.Errorf("overrides report: %w", err)
	}

	overrides := report.ParseOverrides(raw)
	lines := make([]string, 0, len(overrides))
	for _, o := range overrides {
		sections := make([]string, 0, len(o.RequestTypes))
		for _, s := range o.RequestTypes.Sections() {
			sections = append(sections, string(s))
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", o.CallerType, o.Name, strings.Join(sections, ", ")))
	}
	return strings.Join(lines, "\n"), nil
}

// ignoreRules reads the user's ignore list for this cycle. A read failure
// skips filtering for the cycle rather than failing the refresh; ignore rules
// only ever remove entries, so the fallback is the stricter verdict.
func (in *Inspector) ignoreRules() []domain.IgnoreRule {
	if in.ruleSrc == nil {
		return nil
	}
	list, err := in.ruleSrc.IgnoreRules()
	if err != nil {
		in.logger.Warn("ignore rules unavailable, filtering skipped", zap.Error(err))
		return nil
	}
	return list
}

// RemoteSessionBlocker is the synthetic entry representing an active
// remote-desktop session. Suspending would sever the session, so it vetoes
// sleep like any reported power request.
func RemoteSessionBlocker() domain.PowerRequestBlocker {
	return domain.PowerRequestBlocker{
		Section:    domain.SectionSession,
		CallerType: domain.CallerUnknown,
		Name:       "Remote Desktop session",
		RawLine:    "Remote Desktop session active",
	}
}

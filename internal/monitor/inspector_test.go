package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

type fakeDiag struct {
	requests  string
	overrides string
	reqErr    error
	ovrErr    error
}

func (f fakeDiag) RequestsReport(context.Context) (string, error) {
	return f.requests, f.reqErr
}

func (f fakeDiag) OverridesReport(context.Context) (string, error) {
	return f.overrides, f.ovrErr
}

type fakeSession bool

func (f fakeSession) RemoteActive() bool { return bool(f) }

type fakeRuleSource struct {
	list []domain.IgnoreRule
	err  error
}

func (f fakeRuleSource) IgnoreRules() ([]domain.IgnoreRule, error) {
	return f.list, f.err
}

func TestInspector_DriverBlockerSurvives(t *testing.T) {
	diag := fakeDiag{requests: "SYSTEM:\n[DRIVER] Legacy Kernel Caller\nDISPLAY:\nNone.\n"}
	in := NewInspector(diag, nil, fakeSession(false), zap.NewNop())

	blockers, err := in.Inspect(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
	assert.Equal(t, domain.SectionSystem, blockers[0].Section)
	assert.Equal(t, domain.CallerDriver, blockers[0].CallerType)
	assert.Equal(t, "Legacy Kernel Caller", blockers[0].Name)
}

func TestInspector_OverrideSuppressesBlocker(t *testing.T) {
	diag := fakeDiag{
		requests:  "SYSTEM:\n[DRIVER] Legacy Kernel Caller\nDISPLAY:\nNone.\n",
		overrides: "DRIVER\nLegacy Kernel Caller\nSYSTEM\n",
	}
	in := NewInspector(diag, nil, fakeSession(false), zap.NewNop())

	blockers, err := in.Inspect(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, blockers, "overridden entry must not survive")
}

func TestInspector_IgnoreRulesApplied(t *testing.T) {
	diag := fakeDiag{
		requests: "SYSTEM:\n[DRIVER] Legacy Kernel Caller\nEXECUTION:\n[PROCESS] backup.exe\n",
	}
	ruleSrc := fakeRuleSource{list: []domain.IgnoreRule{
		{Section: domain.SectionAny, CallerType: domain.CallerDriver, Name: "legacy kernel caller"},
	}}
	in := NewInspector(diag, ruleSrc, fakeSession(false), zap.NewNop())

	blockers, err := in.Inspect(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
	assert.Equal(t, "backup.exe", blockers[0].Name)
}

func TestInspector_RuleSourceFailureSkipsFiltering(t *testing.T) {
	diag := fakeDiag{requests: "SYSTEM:\n[DRIVER] Legacy Kernel Caller\n"}
	ruleSrc := fakeRuleSource{err: errors.New("store locked")}
	in := NewInspector(diag, ruleSrc, fakeSession(false), zap.NewNop())

	blockers, err := in.Inspect(context.Background(), true)
	require.NoError(t, err, "rule store trouble must not fail the refresh")
	assert.Len(t, blockers, 1, "unfiltered list is the conservative fallback")
}

func TestInspector_RemoteSessionFoldedIn(t *testing.T) {
	diag := fakeDiag{requests: "SYSTEM:\nNone.\n"}
	in := NewInspector(diag, nil, fakeSession(true), zap.NewNop())

	blockers, err := in.Inspect(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
	assert.True(t, blockers[0].Remote())
	assert.Equal(t, domain.SectionSession, blockers[0].Section)

	blockers, err = in.Inspect(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, blockers, "session fold-in is opt-out for raw inspection")
}

func TestInspector_DiagnosticsFailurePropagates(t *testing.T) {
	diag := fakeDiag{reqErr: errors.New("exit status 1")}
	in := NewInspector(diag, nil, fakeSession(false), zap.NewNop())

	_, err := in.Inspect(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requests report")

	diag = fakeDiag{ovrErr: errors.New("exit status 1")}
	in = NewInspector(diag, nil, fakeSession(false), zap.NewNop())
	_, err = in.Inspect(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overrides report")
}

func TestInspector_ActiveOverridesRendering(t *testing.T) {
	diag := fakeDiag{overrides: "[PROCESS]\nvideo.exe\nDISPLAY SYSTEM\nDRIVER\nRealtek Audio\nSYSTEM\n"}
	in := NewInspector(diag, nil, fakeSession(false), zap.NewNop())

	out, err := in.ActiveOverrides(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[PROCESS] video.exe: SYSTEM, DISPLAY\n[DRIVER] Realtek Audio: SYSTEM", out)
}

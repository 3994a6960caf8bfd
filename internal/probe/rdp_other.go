//go:build !windows

package probe

import (
	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// WTSProbe reports no remote sessions on platforms without terminal services.
type WTSProbe struct{}

// NewSessionProbe returns the remote-session probe for this platform.
func NewSessionProbe(_ *zap.Logger) domain.SessionProbe {
	return WTSProbe{}
}

// RemoteActive always reports false.
func (WTSProbe) RemoteActive() bool {
	return false
}

var _ domain.SessionProbe = WTSProbe{}

//go:build !windows

package probe

import (
	"time"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// InputIdle always reports zero idle time on platforms without a last-input
// counter, which keeps the decision engine permanently below threshold. The
// decision core stays portable; only this probe is platform-bound.
type InputIdle struct{}

// NewIdleSource returns the idle probe for this platform.
func NewIdleSource() domain.IdleSource {
	return InputIdle{}
}

// IdleDuration reports zero idle time.
func (InputIdle) IdleDuration() (time.Duration, error) {
	return 0, nil
}

var _ domain.IdleSource = InputIdle{}

//go:build !windows

package power

import (
	"errors"

	"github.com/jmelkko/dozeguard/internal/domain"
)

// SystemSuspender refuses to suspend on platforms without the power profile
// API. The decision engine still runs for development and testing.
type SystemSuspender struct{}

// NewSuspender returns the suspend implementation for this platform.
func NewSuspender() domain.Suspender {
	return SystemSuspender{}
}

// Suspend always fails on this platform.
func (SystemSuspender) Suspend(bool) error {
	return errors.New("system suspend is not supported on this platform")
}

var _ domain.Suspender = SystemSuspender{}

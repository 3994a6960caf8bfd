//go:build windows

package power

import (
	"fmt"
	"syscall"

	"github.com/jmelkko/dozeguard/internal/domain"
)

var (
	powrprof            = syscall.NewLazyDLL("powrprof.dll")
	procSetSuspendState = powrprof.NewProc("SetSuspendState")
)

// SystemSuspender enters the low-power state through the power profile API.
type SystemSuspender struct{}

// NewSuspender returns the suspend implementation for this platform.
func NewSuspender() domain.Suspender {
	return SystemSuspender{}
}

// Suspend requests the transition and does not return until the machine
// wakes again. hibernate selects hibernation instead of sleep.
func (SystemSuspender) Suspend(hibernate bool) error {
	var flag uintptr
	if hibernate {
		flag = 1
	}
	ret, _, callErr := procSetSuspendState.Call(flag, 0, 0)
	if ret == 0 {
		return fmt.Errorf("SetSuspendState: %w", callErr)
	}
	return nil
}

var _ domain.Suspender = SystemSuspender{}

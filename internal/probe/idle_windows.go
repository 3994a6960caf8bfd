//go:build windows

package probe

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/jmelkko/dozeguard/internal/domain"
)

var (
	user32               = syscall.NewLazyDLL("user32.dll")
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// InputIdle reads session-wide user idle time from the last-input tick
// counter. The unsigned subtraction below stays correct across the tick
// counter's 49.7 day wraparound.
type InputIdle struct{}

// NewIdleSource returns the idle probe for this platform.
func NewIdleSource() domain.IdleSource {
	return InputIdle{}
}

// IdleDuration returns the time since the last keyboard or mouse input.
func (InputIdle) IdleDuration() (time.Duration, error) {
	var info lastInputInfo
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, callErr := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("GetLastInputInfo: %w", callErr)
	}

	tick, _, _ := procGetTickCount.Call()
	idleMillis := uint32(tick) - info.dwTime
	return time.Duration(idleMillis) * time.Millisecond, nil
}

var _ domain.IdleSource = InputIdle{}

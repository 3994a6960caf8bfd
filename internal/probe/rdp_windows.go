//go:build windows

package probe

import (
	"syscall"
	"unsafe"

	"go.uber.org/zap"

	"github.com/jmelkko/dozeguard/internal/domain"
)

var (
	wtsapi32                       = syscall.NewLazyDLL("wtsapi32.dll")
	procWTSEnumerateSessionsW      = wtsapi32.NewProc("WTSEnumerateSessionsW")
	procWTSQuerySessionInformation = wtsapi32.NewProc("WTSQuerySessionInformationW")
	procWTSFreeMemory              = wtsapi32.NewProc("WTSFreeMemory")
)

const (
	wtsCurrentServerHandle = 0

	// WTS_CONNECTSTATE_CLASS: a session with a logged-in, connected user.
	wtsActive = 0

	// WTS_INFO_CLASS: WTSClientProtocolType.
	wtsClientProtocolType = 16

	// Protocol type 2 is a remote-desktop session; 0 is the local console.
	protocolRDP = 2
)

type wtsSessionInfo struct {
	SessionID      uint32
	WinStationName *uint16
	State          uint32
}

// WTSProbe detects active remote-desktop sessions through the local terminal
// services API. Every failure path answers false: suspending under a live
// remote user severs the session, so detection errs toward keeping the
// machine awake only when a session is positively identified.
type WTSProbe struct {
	logger *zap.Logger
}

// NewSessionProbe returns the remote-session probe for this platform.
func NewSessionProbe(logger *zap.Logger) domain.SessionProbe {
	return &WTSProbe{logger: logger}
}

// RemoteActive reports whether any active session uses the remote-desktop
// protocol.
func (p *WTSProbe) RemoteActive() bool {
	var (
		sessions uintptr
		count    uint32
	)
	ret, _, callErr := procWTSEnumerateSessionsW.Call(
		wtsCurrentServerHandle,
		0, // reserved
		1, // version
		uintptr(unsafe.Pointer(&sessions)),
		uintptr(unsafe.Pointer(&count)),
	)
	if ret == 0 || sessions == 0 {
		p.logger.Debug("session enumeration failed", zap.Error(callErr))
		return false
	}
	defer procWTSFreeMemory.Call(sessions)

	size := unsafe.Sizeof(wtsSessionInfo{})
	for i := uintptr(0); i < uintptr(count); i++ {
		info := (*wtsSessionInfo)(unsafe.Pointer(sessions + i*size))
		if info.State != wtsActive {
			continue
		}
		if p.protocolType(info.SessionID) == protocolRDP {
			return true
		}
	}
	return false
}

func (p *WTSProbe) protocolType(sessionID uint32) uint16 {
	var (
		buf   uintptr
		bytes uint32
	)
	ret, _, callErr := procWTSQuerySessionInformation.Call(
		wtsCurrentServerHandle,
		uintptr(sessionID),
		wtsClientProtocolType,
		uintptr(unsafe.Pointer(&buf)),
		uintptr(unsafe.Pointer(&bytes)),
	)
	if ret == 0 || buf == 0 {
		p.logger.Debug("session protocol query failed",
			zap.Uint32("session_id", sessionID),
			zap.Error(callErr))
		return 0
	}
	defer procWTSFreeMemory.Call(buf)

	return *(*uint16)(unsafe.Pointer(buf))
}

var _ domain.SessionProbe = (*WTSProbe)(nil)

//go:build windows

package probe

import (
	"os/exec"
	"syscall"
)

// hideWindow keeps the console host from flashing a window on every
// diagnostics refresh when the agent runs outside a console session.
func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}

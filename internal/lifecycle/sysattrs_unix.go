//go:build !windows

package lifecycle

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr sets platform attributes on the child. Detached
// children get their own session (setsid) so they survive the launching
// terminal closing; attached children get their own process group so the
// shutdown routine can signal them without touching the launcher.
func configureSysProcAttr(cmd *exec.Cmd, detached bool) {
	attrs := &syscall.SysProcAttr{}
	if detached {
		attrs.Setsid = true
	} else {
		attrs.Setpgid = true
	}
	cmd.SysProcAttr = attrs
}

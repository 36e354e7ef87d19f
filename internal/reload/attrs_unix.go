//go:build !windows

package reload

import (
	"os/exec"
	"syscall"
)

// configureWorkerAttrs puts the worker in its own process group so signals
// aimed at the supervisor's terminal do not bypass the supervised shutdown.
func configureWorkerAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes places the child in its own process group so the
// termination signals below reach the whole tree it spawns
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

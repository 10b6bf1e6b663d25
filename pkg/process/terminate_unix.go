//go:build !windows

package process

import (
	"fmt"
	"syscall"
)

// SendTerminationSignal signals the process group led by pid
func SendTerminationSignal(pid int, signal TerminationSignal) error {
	sig := syscall.SIGTERM
	if signal == SignalInterrupt {
		sig = syscall.SIGINT
	}
	// Negative PID addresses the process group
	return syscall.Kill(-pid, sig)
}

// SendKillSignal kills every process in the group led by pid
func SendKillSignal(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}
	return syscall.Kill(-pid, syscall.SIGKILL)
}

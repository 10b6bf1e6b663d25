//go:build windows

package process

import (
	"fmt"
	"sync"
	"syscall"
)

const (
	ctrlBreakEvent   = 1
	processTerminate = 0x0001
)

var (
	kernel32                     = syscall.NewLazyDLL("kernel32.dll")
	procGenerateConsoleCtrlEvent = kernel32.NewProc("GenerateConsoleCtrlEvent")

	// Console control events are process-wide state
	consoleOperationLock sync.Mutex
)

// SendTerminationSignal sends Ctrl+Break to the process group of pid.
// Windows has no SIGINT/SIGTERM distinction, both map to Ctrl+Break.
func SendTerminationSignal(pid int, signal TerminationSignal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}

	consoleOperationLock.Lock()
	defer consoleOperationLock.Unlock()

	r, _, err := procGenerateConsoleCtrlEvent.Call(ctrlBreakEvent, uintptr(pid))
	if r == 0 {
		return fmt.Errorf("GenerateConsoleCtrlEvent failed for PID %d: %v", pid, err)
	}
	return nil
}

// SendKillSignal terminates pid. Children in its console group received
// Ctrl+Break in the earlier steps.
func SendKillSignal(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}

	handle, err := syscall.OpenProcess(processTerminate, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess failed for PID %d: %v", pid, err)
	}
	defer syscall.CloseHandle(handle)

	if err := syscall.TerminateProcess(handle, 1); err != nil {
		return fmt.Errorf("TerminateProcess failed for PID %d: %v", pid, err)
	}
	return nil
}

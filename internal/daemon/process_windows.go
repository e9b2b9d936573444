//go:build windows

package daemon

import (
	"os"
	"syscall"
)

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Windows; probe with a zero signal.
	return proc.Signal(syscall.Signal(0)) == nil
}

// terminate kills the process; Windows has no SIGTERM delivery.
func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

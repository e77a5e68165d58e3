//go:build !unix

package devicelock

import "os"

// processAlive reports whether pid names a live process. Non-unix platforms
// have no signal-0 probe, so this falls back to FindProcess, which on
// Windows already fails for a PID that has exited.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}

//go:build unix

package devicelock

import "golang.org/x/sys/unix"

// processAlive reports whether pid names a live process by probing it with
// signal 0, which the kernel delivers to no one but still validates that the
// target exists and is reachable by this user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}

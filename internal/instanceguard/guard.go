package instanceguard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = "main.pid"

// ErrAlreadyRunning is returned by Acquire when another engine instance
// already holds the lock for the same day-local log directory.
var ErrAlreadyRunning = fmt.Errorf("another engine instance is already running")

// Guard is the C6 single-instance enforcement described in §4.6: an
// exclusive file lock on main.pid under the day-local log directory,
// holding the current process's PID for the engine's lifetime.
type Guard struct {
	path string
	lock *flock.Flock
}

// New returns a Guard for logDir/main.pid. logDir is expected to already be
// the day-local log directory; it is not created here.
func New(logDir string) *Guard {
	path := filepath.Join(logDir, lockFileName)
	return &Guard{path: path, lock: flock.New(path)}
}

// Path returns the PID lock file path.
func (g *Guard) Path() string {
	return g.path
}

// Acquire takes the exclusive lock and writes the current PID. It returns
// ErrAlreadyRunning if another process already holds the lock; callers
// should treat that as fatal and exit with a clear diagnostic per §4.6.
func (g *Guard) Acquire() error {
	ok, err := g.lock.TryLock()
	if err != nil {
		return fmt.Errorf("instanceguard: acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	file, err := os.OpenFile(g.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = g.lock.Unlock()
		return fmt.Errorf("instanceguard: write pid file: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		_ = g.lock.Unlock()
		return fmt.Errorf("instanceguard: write pid: %w", err)
	}
	return nil
}

// Release unlocks and deletes the PID file, per §4.6's "release and delete
// on orderly shutdown" and §5's cancellation fan-out.
func (g *Guard) Release() error {
	unlockErr := g.lock.Unlock()
	removeErr := os.Remove(g.path)
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}
	if unlockErr != nil {
		return fmt.Errorf("instanceguard: unlock: %w", unlockErr)
	}
	return removeErr
}

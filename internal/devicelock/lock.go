package devicelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout is returned by Acquire when the lock is not obtained before the
// supplied timeout elapses.
var ErrTimeout = errors.New("devicelock: timeout waiting for lock")

const lockFileName = "filejobrouter.device.lock"

const pollInterval = 100 * time.Millisecond

// Owner records who is currently holding the lock, written as the file's
// contents so a competing process can report a meaningful diagnostic.
type Owner struct {
	PID        int       `json:"pid"`
	User       string    `json:"user"`
	AcquiredAt time.Time `json:"acquired_at"`
	JobID      string    `json:"job_id,omitempty"`
}

// Lock is the single, machine-wide device lock described by §4.1. A Lock
// value is safe to reuse across repeated Acquire/Release cycles but is not
// itself safe for concurrent use by multiple goroutines.
type Lock struct {
	mu   sync.Mutex
	path string
	fl   *flock.Flock
}

// New constructs a Lock rooted at dir (see LockDirectory in the config
// package) using mutexName to distinguish lock files when multiple engines
// share a lock directory.
func New(dir, mutexName string) *Lock {
	name := lockFileName
	if mutexName != "" {
		name = sanitizeName(mutexName) + ".lock"
	}
	path := filepath.Join(dir, name)
	return &Lock{path: path, fl: flock.New(path)}
}

// Path returns the lock file's location on disk.
func (l *Lock) Path() string {
	return l.path
}

// Acquire blocks until the lock is obtained, timeout elapses (returning
// ErrTimeout), or ctx-independent polling is interrupted by a filesystem
// error. A stale lock - one whose recorded owner PID is no longer alive - is
// reclaimed automatically.
func (l *Lock) Acquire(timeout time.Duration, jobID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.fl.TryLock()
		if err != nil {
			return fmt.Errorf("devicelock: try lock: %w", err)
		}
		if ok {
			return l.writeOwner(jobID)
		}

		if l.reclaimStale() {
			continue
		}

		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(pollInterval)
	}
}

// Release unlocks the device, clearing the owner record.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = os.Remove(l.path)
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("devicelock: release: %w", err)
	}
	return nil
}

// CurrentOwner reads the owner record from disk, if any. It is best-effort
// diagnostic information and returns ok=false when no lock is currently
// held or the record cannot be parsed.
func (l *Lock) CurrentOwner() (Owner, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Owner{}, false
	}
	var owner Owner
	if err := json.Unmarshal(data, &owner); err != nil {
		return Owner{}, false
	}
	return owner, true
}

func (l *Lock) writeOwner(jobID string) error {
	owner := Owner{
		PID:        os.Getpid(),
		User:       currentUsername(),
		AcquiredAt: time.Now().UTC(),
		JobID:      jobID,
	}
	data, err := json.Marshal(owner)
	if err != nil {
		_ = l.fl.Unlock()
		return fmt.Errorf("devicelock: encode owner: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		_ = l.fl.Unlock()
		return fmt.Errorf("devicelock: write owner: %w", err)
	}
	return nil
}

// reclaimStale inspects the current owner record and, if its PID is no
// longer alive, removes the lock file out from under the dead owner so the
// next TryLock succeeds. It reports whether it took any action.
func (l *Lock) reclaimStale() bool {
	owner, ok := l.CurrentOwner()
	if !ok {
		return false
	}
	if processAlive(owner.PID) {
		return false
	}
	_ = os.Remove(l.path)
	return true
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_")
	return replacer.Replace(name)
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

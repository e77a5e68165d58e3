package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"filejobrouter/internal/logging"
)

const (
	queueFileName = "queue.json"
	lockFileName  = "queue.lock"
	lockWait      = 2 * time.Second
	lockRetry     = 25 * time.Millisecond
)

// Store is the day-partitioned Queue Store described in spec §4.2. Its day
// is pinned at construction time and never advances, so a Store instance
// always reads and writes the same queue.json even across a midnight
// rollover during the run.
type Store struct {
	mu     sync.Mutex
	dir    string
	path   string
	flock  *flock.Flock
	logger *slog.Logger
}

// New constructs a Store rooted at baseDir/<day>, creating the directory if
// it does not exist. day should be formatted "2006-01-02".
func New(baseDir, day string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	dir := filepath.Join(baseDir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("queue: create day directory: %w", err)
	}
	return &Store{
		dir:    dir,
		path:   filepath.Join(dir, queueFileName),
		flock:  flock.New(filepath.Join(dir, lockFileName)),
		logger: logging.NewComponentLogger(logger, "queue"),
	}, nil
}

// Dir returns the day-partition directory this Store reads and writes.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the queue.json file path this Store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current day's queue, creating an empty one on disk if
// absent.
func (s *Store) Load() ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		if err := s.saveLocked([]Job{}); err != nil {
			s.logger.Warn("create empty queue file failed", logging.Error(err))
		}
	}
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]Job, error) {
	unlock := s.acquireAdvisory()
	defer unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Job{}, nil
	}
	if err != nil {
		s.logger.Warn("queue load failed, returning empty queue", logging.Error(err))
		return []Job{}, nil
	}
	if len(data) == 0 {
		return []Job{}, nil
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		s.logger.Warn("queue file corrupt, returning empty queue", logging.Error(err))
		return []Job{}, nil
	}
	return jobs, nil
}

// Save persists jobs atomically: write to a sibling temp file, fsync, then
// rename over the target.
func (s *Store) Save(jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(jobs)
}

func (s *Store) saveLocked(jobs []Job) error {
	unlock := s.acquireAdvisory()
	defer unlock()

	if jobs == nil {
		jobs = []Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("queue: encode: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := writeAndSync(tmpPath, data); err != nil {
		return fmt.Errorf("queue: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		if copyErr := copyOverAndDelete(tmpPath, s.path); copyErr != nil {
			return fmt.Errorf("queue: replace queue file: rename failed (%v), fallback failed (%w)", err, copyErr)
		}
	}
	return nil
}

// Add appends job after confirming no active Job already has the same
// InputPath (§3 Invariants, §4.3 Duplicate suppression).
func (s *Store) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return err
	}
	for _, existing := range jobs {
		if existing.InputPath == job.InputPath && existing.Status.Active() {
			return ErrDuplicateActive
		}
	}
	jobs = append(jobs, job)
	return s.saveLocked(jobs)
}

// Update applies mutate to the Job with the given ID and persists the
// result. mutate receives a pointer into the loaded slice.
func (s *Store) Update(id string, mutate func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].ID == id {
			mutate(&jobs[i])
			return s.saveLocked(jobs)
		}
	}
	return ErrNotFound
}

// Get returns a copy of the Job with the given ID.
func (s *Store) Get(id string) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return Job{}, false, err
	}
	for _, job := range jobs {
		if job.ID == id {
			return job.Clone(), true, nil
		}
	}
	return Job{}, false, nil
}

// List returns every Job in the current day's queue, ordered oldest-first
// by CreatedAt.
func (s *Store) List() ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	sortByCreatedAt(jobs)
	return jobs, nil
}

// NextPending returns the oldest Pending job by CreatedAt, or ok=false if
// none is queued.
func (s *Store) NextPending() (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return Job{}, false, err
	}
	var best *Job
	for i := range jobs {
		if jobs[i].Status != Pending {
			continue
		}
		if best == nil || jobs[i].CreatedAt.Before(best.CreatedAt) {
			best = &jobs[i]
		}
	}
	if best == nil {
		return Job{}, false, nil
	}
	return best.Clone(), true, nil
}

// Recover rewrites any Processing job to Pending, clearing StartedAt and
// annotating ErrorMessage, per §4.2. It is idempotent: calling it twice in a
// row is equivalent to calling it once.
func (s *Store) Recover() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return 0, err
	}
	recovered := 0
	for i := range jobs {
		if jobs[i].Status != Processing {
			continue
		}
		jobs[i].Status = Pending
		jobs[i].StartedAt = nil
		jobs[i].ErrorMessage = "Recovered from previous session"
		recovered++
	}
	if recovered == 0 {
		return 0, nil
	}
	if err := s.saveLocked(jobs); err != nil {
		return 0, err
	}
	return recovered, nil
}

// acquireAdvisory takes the cross-process queue.lock with a bounded wait.
// Timing out logs a warning and proceeds unlocked: the invariant that there
// is only one writer is enforced by the Instance Guard (C6), so this lock
// is defensive only (§4.2 Concurrency).
func (s *Store) acquireAdvisory() (unlock func()) {
	ctx, cancel := context.WithTimeout(context.Background(), lockWait)
	defer cancel()

	ok, err := s.flock.TryLockContext(ctx, lockRetry)
	if err != nil || !ok {
		s.logger.Warn("queue advisory lock not acquired, proceeding unlocked",
			logging.String("path", s.flock.Path()), logging.Error(err))
		return func() {}
	}
	return func() {
		if err := s.flock.Unlock(); err != nil {
			s.logger.Warn("queue advisory unlock failed", logging.Error(err))
		}
	}
}

func writeAndSync(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		if rmErr := os.Remove(path); rmErr != nil {
			return rmErr
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_EXCL, 0o644)
	}
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return err
	}
	return file.Sync()
}

func copyOverAndDelete(tmpPath, targetPath string) error {
	src, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	if err := dst.Sync(); err != nil {
		return err
	}
	_ = os.Remove(tmpPath)
	return nil
}

// sortByCreatedAt orders jobs oldest-first, matching FIFO dispatch order.
func sortByCreatedAt(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}

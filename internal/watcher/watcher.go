package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"filejobrouter/internal/logging"
	"filejobrouter/internal/queue"
)

// Config carries the subset of engine configuration the Watcher needs,
// already resolved by the config package (§6).
type Config struct {
	WatchDirectory             string
	Mappings                   map[string]WorkerRoot
	DefaultWorkerForRoot       string
	IgnoreHiddenAndSystemFiles bool
}

// Watcher is the filesystem watcher described in spec §4.3. It polls
// WatchDirectory on a fixed interval, debounces each newly observed file
// until stable, classifies it, and enqueues a Pending Job.
type Watcher struct {
	cfg    Config
	day    string
	store  *queue.Store
	logger *slog.Logger

	pollInterval      time.Duration
	stabilitySamples  int
	stabilityInterval time.Duration

	mu       sync.Mutex
	tracking map[string]struct{}
	wg       sync.WaitGroup
}

// New constructs a Watcher. day is the engine's pinned startup day, used to
// compute output paths per §4.3's output_path_rule.
func New(cfg Config, day string, store *queue.Store, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		cfg:               cfg,
		day:               day,
		store:             store,
		logger:            logging.NewComponentLogger(logger, "watcher"),
		pollInterval:      5 * time.Second,
		stabilitySamples:  defaultStabilitySamples,
		stabilityInterval: defaultStabilityInterval,
		tracking:          make(map[string]struct{}),
	}
}

// Run bootstraps by enumerating pre-existing files, then polls the watch
// tree until ctx is cancelled. It blocks; callers run it in its own
// goroutine.
func (w *Watcher) Run(ctx context.Context) {
	w.scan(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan walks the watch tree once, launching a debounce-and-enqueue
// goroutine for every candidate file not already being tracked.
func (w *Watcher) scan(ctx context.Context) {
	root := w.cfg.WatchDirectory
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if w.cfg.IgnoreHiddenAndSystemFiles && isIgnorable(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		w.mu.Lock()
		if _, already := w.tracking[path]; already {
			w.mu.Unlock()
			return nil
		}
		w.tracking[path] = struct{}{}
		w.mu.Unlock()

		w.wg.Add(1)
		go w.handleCandidate(ctx, path, rel)
		return nil
	})
	if err != nil {
		w.logger.Warn("watch scan failed", logging.Error(err), logging.String(logging.FieldEventType, "watch_scan_failed"))
	}
}

// handleCandidate debounces path until stable, classifies it, and - unless
// it is a duplicate of an active Job or fails to stabilise - enqueues a
// Pending Job.
func (w *Watcher) handleCandidate(ctx context.Context, path, rel string) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		delete(w.tracking, path)
		w.mu.Unlock()
	}()

	if !awaitStableCtx(ctx, path, w.stabilitySamples, w.stabilityInterval) {
		w.logger.Warn("file never stabilised, skipping",
			logging.String("path", path), logging.String(logging.FieldEventType, "stability_check_failed"))
		return
	}

	result := classify(rel, w.day, w.cfg.Mappings, w.cfg.DefaultWorkerForRoot)
	if result.skip {
		w.logger.Info("skipping unroutable file",
			logging.String("path", path), logging.String("reason", result.skipReason))
		return
	}

	if err := w.enqueue(path, result); err != nil {
		if err == queue.ErrDuplicateActive {
			return
		}
		w.logger.Warn("enqueue failed", logging.String("path", path), logging.Error(err))
	}
}

func (w *Watcher) enqueue(path string, result classification) error {
	job := queue.Job{
		ID:         uuid.NewString(),
		InputPath:  path,
		OutputPath: result.outputPath,
		TargetApp:  result.targetApp,
		Status:     queue.Pending,
		CreatedAt:  time.Now().UTC(),
		UserName:   currentUsername(),
	}
	if err := w.store.Add(job); err != nil {
		return err
	}
	w.logger.Info("job enqueued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("target_app", job.TargetApp),
		logging.String("input_path", job.InputPath))
	return nil
}

// awaitStableCtx is awaitStable with early exit on context cancellation.
func awaitStableCtx(ctx context.Context, path string, maxSamples int, interval time.Duration) bool {
	done := make(chan bool, 1)
	go func() { done <- awaitStable(path, maxSamples, interval) }()

	select {
	case stable := <-done:
		return stable
	case <-ctx.Done():
		return false
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

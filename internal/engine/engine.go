package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filejobrouter/internal/config"
	"filejobrouter/internal/devicelock"
	"filejobrouter/internal/instanceguard"
	"filejobrouter/internal/logging"
	"filejobrouter/internal/notifier"
	"filejobrouter/internal/processor"
	"filejobrouter/internal/queue"
	"filejobrouter/internal/watcher"
)

// Engine is the process-context value constructed once at startup and
// passed explicitly to every long-running operation (§9).
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	day    string

	guard     *instanceguard.Guard
	store     *queue.Store
	device    *devicelock.Lock
	watcher   *watcher.Watcher
	processor *processor.Processor
	notifier  *notifier.Notifier

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds every C1-C6 component from cfg but acquires nothing yet; call
// Run to take the Instance Guard and start the background loops.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: configuration is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	day := time.Now().Format("2006-01-02")

	store, err := queue.New(cfg.QueueBaseDirectory, day, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open queue store: %w", err)
	}

	device := devicelock.New(config.LockDirectory(), cfg.MutexName)

	watcherMappings := make(map[string]watcher.WorkerRoot, len(cfg.Mappings))
	processorMappings := make(map[string]processor.WorkerMapping, len(cfg.Mappings))
	for key, mapping := range cfg.Mappings {
		watcherMappings[key] = watcher.WorkerRoot{OutputDirectory: mapping.OutputDirectory}
		processorMappings[key] = processor.WorkerMapping{
			ExecutablePath:  mapping.ExecutablePath,
			OutputDirectory: mapping.OutputDirectory,
		}
	}

	w := watcher.New(watcher.Config{
		WatchDirectory:             cfg.WatchDirectory,
		Mappings:                   watcherMappings,
		DefaultWorkerForRoot:       cfg.DefaultWorkerForRoot,
		IgnoreHiddenAndSystemFiles: cfg.IgnoreHiddenAndSystemFiles,
	}, day, store, logger)

	// proc is declared before notifier so the notifier's retry callback can
	// close over it; it is assigned immediately afterward and only invoked
	// once Run starts both components' background loops.
	var proc *processor.Processor

	n := notifier.New(notifier.Config{
		CandidateURLs: cfg.Notifier.CandidateURLs,
		Logger:        logger,
		OnRetryJob: func(jobID string) error {
			return proc.RetryJob(jobID)
		},
	})

	proc = processor.New(processor.Config{
		Store:                  store,
		Device:                 device,
		Notifier:               n,
		Reloader:               configReloader{cfg},
		Logger:                 logger,
		Day:                    day,
		JobsDirectory:          cfg.JobsDirectory,
		DefaultWorkerForRoot:   cfg.DefaultWorkerForRoot,
		Mappings:               processorMappings,
		RuntimeLauncherCommand: cfg.RuntimeLauncherCommand,
		Initial: processor.Tunables{
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxRetryCount:  cfg.MaxRetryCount,
		},
	})

	dayLogDir := filepath.Join(cfg.LogDirectory, day)
	if err := os.MkdirAll(dayLogDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create day-local log directory: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "engine"),
		day:       day,
		guard:     instanceguard.New(dayLogDir),
		store:     store,
		device:    device,
		watcher:   w,
		processor: proc,
		notifier:  n,
	}, nil
}

// Run acquires the Instance Guard, starts the Watcher, Processor, and
// Notifier loops, and blocks until ctx is cancelled. On return every
// component has been stopped and the Instance Guard file removed (§5's
// cancellation fan-out).
func (e *Engine) Run(ctx context.Context) error {
	if err := e.guard.Acquire(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer func() {
		if err := e.guard.Release(); err != nil {
			e.logger.Warn("instance guard release failed", logging.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	e.wg.Add(3)
	go func() {
		defer e.wg.Done()
		e.watcher.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.processor.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.notifier.Run(runCtx)
	}()

	e.logger.Info("engine started",
		logging.String("day", e.day),
		logging.String("watch_directory", e.cfg.WatchDirectory),
		logging.String("instance_guard", e.guard.Path()))

	<-runCtx.Done()
	e.wg.Wait()
	e.logger.Info("engine stopped")
	return nil
}

// Stop cancels the running engine's context, if any. Safe to call even if
// Run has not yet been called.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// configReloader adapts *config.Config to processor.TunablesReloader,
// re-reading TimeoutSeconds and MaxRetryCount from the on-disk config.json
// per §4.4.d. The underlying config value is replaced on every successful
// reload so later calls pick up from the latest known source path.
type configReloader struct {
	cfg *config.Config
}

func (r configReloader) Reload() (processor.Tunables, error) {
	fresh, err := r.cfg.Reload()
	if err != nil {
		return processor.Tunables{}, err
	}
	*r.cfg = *fresh
	return processor.Tunables{
		TimeoutSeconds: fresh.TimeoutSeconds,
		MaxRetryCount:  fresh.MaxRetryCount,
	}, nil
}

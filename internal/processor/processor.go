package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"filejobrouter/internal/devicelock"
	"filejobrouter/internal/logging"
	"filejobrouter/internal/queue"
)

const deviceAcquireTimeout = 5 * time.Second

const idleSleep = 5 * time.Second

const tunablesReloadInterval = 2 * time.Second

// WorkerMapping is the resolved worker entry the Processor needs: where its
// executable lives and where its outputs are rooted.
type WorkerMapping struct {
	ExecutablePath  string
	OutputDirectory string
}

// DeviceLock is the subset of devicelock.Lock the Processor depends on.
type DeviceLock interface {
	Acquire(timeout time.Duration, jobID string) error
	Release() error
}

// Notifier is the subset of the C5 Notifier contract the Processor drives
// (§4.5's outbound events). Implementations must never block or fail the
// caller; a disconnected Notifier silently drops events.
type Notifier interface {
	SendJobUpdate(jobID string, status queue.Status, msg string)
	SendQueueUpdate(jobs []queue.Job)
}

// nopNotifier is used when Config.Notifier is left nil, e.g. by the CLI's
// one-shot "queue retry" command, which has no live push channel to send to.
type nopNotifier struct{}

func (nopNotifier) SendJobUpdate(string, queue.Status, string) {}
func (nopNotifier) SendQueueUpdate([]queue.Job)                {}

// Tunables are the only configuration values the Processor may pick up on a
// live reload (§4.4.d).
type Tunables struct {
	TimeoutSeconds int
	MaxRetryCount  int
}

// TunablesReloader re-reads configuration and returns the current
// tunables.
type TunablesReloader interface {
	Reload() (Tunables, error)
}

// Processor is the dispatch engine's main loop (C4).
type Processor struct {
	store    *queue.Store
	device   DeviceLock
	notifier Notifier
	reloader TunablesReloader
	logger   *slog.Logger
	executor Executor
	day      string
	jobsDir  string

	defaultWorkerForRoot string
	mappings             map[string]WorkerMapping
	launcherCommand      string

	mu         sync.Mutex
	tunables   Tunables
	lastReload time.Time
}

// Config carries the Processor's static dependencies and initial tunables.
type Config struct {
	Store                  *queue.Store
	Device                 DeviceLock
	Notifier               Notifier
	Reloader               TunablesReloader
	Logger                 *slog.Logger
	Executor               Executor
	Day                    string
	JobsDirectory          string
	DefaultWorkerForRoot   string
	Mappings               map[string]WorkerMapping
	RuntimeLauncherCommand string
	Initial                Tunables
}

// New constructs a Processor.
func New(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	executor := cfg.Executor
	if executor == nil {
		executor = commandExecutor{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Processor{
		store:                cfg.Store,
		device:                cfg.Device,
		notifier:              notifier,
		reloader:              cfg.Reloader,
		logger:                logging.NewComponentLogger(logger, "processor"),
		executor:              executor,
		day:                   cfg.Day,
		jobsDir:               cfg.JobsDirectory,
		defaultWorkerForRoot:  cfg.DefaultWorkerForRoot,
		mappings:              cfg.Mappings,
		launcherCommand:       cfg.RuntimeLauncherCommand,
		tunables:              cfg.Initial,
		lastReload:            time.Now(),
	}
}

// Run is the main dispatch loop described in §4.4's Contract. It calls
// Recover once, then repeatedly pulls the next Pending job and dispatches
// it until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	if n, err := p.store.Recover(); err != nil {
		p.logger.Warn("recover failed", logging.Error(err))
	} else if n > 0 {
		p.logger.Info("recovered jobs from previous session", logging.Int("count", n))
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := p.store.NextPending()
		if err != nil {
			p.logger.Warn("next pending lookup failed", logging.Error(err))
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
			continue
		}

		p.dispatch(ctx, job)
	}
}

// dispatch runs one job through the per-job steps of §4.4.
func (p *Processor) dispatch(ctx context.Context, job queue.Job) {
	log := logging.WithContext(logging.WithJobID(ctx, job.ID), p.logger)

	// a. Resolve target.
	if job.TargetApp == queue.UserChoice {
		if p.defaultWorkerForRoot == "" {
			p.failJob(job.ID, "no default worker configured for user_choice job")
			return
		}
		job.TargetApp = p.defaultWorkerForRoot
	}
	mapping, ok := p.mappings[job.TargetApp]
	if !ok {
		p.failJob(job.ID, fmt.Sprintf("unknown worker %q", job.TargetApp))
		return
	}

	// b. Acquire device.
	if err := p.device.Acquire(deviceAcquireTimeout, job.ID); err != nil {
		if errors.Is(err, devicelock.ErrTimeout) {
			log.Info("device busy, leaving job pending")
			p.notifier.SendJobUpdate(job.ID, queue.Pending, "waiting for device")
			return
		}
		log.Warn("device acquire failed", logging.Error(err))
		return
	}
	defer func() {
		if err := p.device.Release(); err != nil {
			log.Warn("device release failed", logging.Error(err))
		}
	}()

	// c. Mark Processing.
	started := time.Now().UTC()
	if err := p.store.Update(job.ID, func(j *queue.Job) {
		j.Status = queue.Processing
		j.StartedAt = &started
		j.TargetApp = job.TargetApp
	}); err != nil {
		log.Warn("mark processing failed", logging.Error(err))
		return
	}
	p.notifier.SendJobUpdate(job.ID, queue.Processing, "")
	p.syncJobRecord(job.ID, log)
	p.announceQueue(log)

	// d. Reload tunables.
	timeoutSeconds, maxRetry := p.currentTunables()

	// e. Resolve binary.
	command, argsPrefix, err := resolveBinary(mapping.ExecutablePath, p.launcherCommand)
	if err != nil {
		p.failJob(job.ID, err.Error())
		p.announceQueue(log)
		return
	}

	// f. & g. Spawn and wait with timeout.
	args := append(append([]string{}, argsPrefix...), job.InputPath, job.OutputPath)
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	exitCode, stderr, runErr := p.executor.Run(runCtx, command, args)
	timedOut := runCtx.Err() == context.DeadlineExceeded
	cancelled := ctx.Err() != nil
	cancel()

	// h. Interpret result.
	switch {
	case cancelled:
		p.failJob(job.ID, "Cancelled")
	case timedOut:
		p.handleTimeout(job.ID, maxRetry, log)
	case runErr != nil:
		p.failWorkerJob(job.ID, runErr.Error())
	case exitCode == 0:
		p.completeJob(job.ID, job.InputPath, log)
	default:
		msg := fmt.Sprintf("Worker process exited with code %d", exitCode)
		if strings.TrimSpace(stderr) != "" {
			msg = "Worker stderr: " + strings.TrimSpace(stderr)
		}
		p.failWorkerJob(job.ID, msg)
	}
	p.announceQueue(log)
}

func (p *Processor) currentTunables() (timeoutSeconds, maxRetry int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reloader != nil && time.Since(p.lastReload) >= tunablesReloadInterval {
		if t, err := p.reloader.Reload(); err == nil {
			p.tunables = t
		} else {
			p.logger.Warn("tunables reload failed", logging.Error(err))
		}
		p.lastReload = time.Now()
	}
	return p.tunables.TimeoutSeconds, p.tunables.MaxRetryCount
}

func (p *Processor) completeJob(jobID, inputPath string, log *slog.Logger) {
	now := time.Now().UTC()
	if err := p.store.Update(jobID, func(j *queue.Job) {
		j.Status = queue.Completed
		j.CompletedAt = &now
		j.ErrorMessage = ""
	}); err != nil {
		log.Warn("mark completed failed", logging.Error(err))
		return
	}
	if err := os.Remove(inputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("delete input file failed", logging.String("path", inputPath), logging.Error(err))
	}
	p.notifier.SendJobUpdate(jobID, queue.Completed, "")
	p.syncJobRecord(jobID, log)
}

func (p *Processor) handleTimeout(jobID string, maxRetry int, log *slog.Logger) {
	err := p.store.Update(jobID, func(j *queue.Job) {
		j.RetryCount++
		if j.RetryCount <= maxRetry {
			j.Status = queue.Pending
			j.StartedAt = nil
			j.CompletedAt = nil
			j.ErrorMessage = ""
		} else {
			j.Status = queue.Failed
			now := time.Now().UTC()
			j.CompletedAt = &now
			j.ErrorMessage = "Process timed out"
		}
	})
	if err != nil {
		log.Warn("timeout transition failed", logging.Error(err))
		return
	}
	job, _, _ := p.store.Get(jobID)
	p.notifier.SendJobUpdate(jobID, job.Status, "Process timed out")
	p.syncJobRecord(jobID, log)
}

// failJob marks a job Failed without incrementing RetryCount. It is used for
// target and binary resolution failures (§4.4.a, §4.4.e), which never run a
// worker, and for engine cancellation (§4.4.g) during a worker run.
func (p *Processor) failJob(jobID, message string) {
	p.failJobWithRetry(jobID, message, false)
}

// failWorkerJob marks a job Failed after a worker was actually attempted
// (non-zero exit, exec error), counting it against the retry policy of §4.4.
func (p *Processor) failWorkerJob(jobID, message string) {
	p.failJobWithRetry(jobID, message, true)
}

func (p *Processor) failJobWithRetry(jobID, message string, countsAsRetry bool) {
	_ = p.store.Update(jobID, func(j *queue.Job) {
		if countsAsRetry {
			j.RetryCount++
		}
		j.Status = queue.Failed
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.ErrorMessage = message
	})
	p.notifier.SendJobUpdate(jobID, queue.Failed, message)
	p.syncJobRecord(jobID, p.logger)
}

// syncJobRecord writes the job-side record described in §6 to
// JobsDirectory/<user>/<day>/<id>.json, reflecting the Job's latest state.
func (p *Processor) syncJobRecord(jobID string, log *slog.Logger) {
	if p.jobsDir == "" {
		return
	}
	job, ok, err := p.store.Get(jobID)
	if err != nil || !ok {
		return
	}
	if err := queue.WriteJobRecord(p.jobsDir, p.day, job); err != nil {
		log.Warn("job record write failed", logging.Error(err))
	}
}

func (p *Processor) announceQueue(log *slog.Logger) {
	jobs, err := p.store.List()
	if err != nil {
		log.Warn("queue list for notification failed", logging.Error(err))
		return
	}
	p.notifier.SendQueueUpdate(jobs)
}

// RetryJob implements the UI-initiated retry described at the end of
// §4.4: verifies jobId is Failed, confirms its input file still exists,
// then transitions it back to Pending.
func (p *Processor) RetryJob(jobID string) error {
	job, ok, err := p.store.Get(jobID)
	if err != nil {
		return err
	}
	if !ok || job.Status != queue.Failed {
		return nil
	}

	if !fileExists(job.InputPath) {
		if err := p.store.Update(jobID, func(j *queue.Job) {
			j.Status = queue.Failed
			j.ErrorMessage = "Input file not found"
		}); err != nil {
			return err
		}
		p.notifier.SendJobUpdate(jobID, queue.Failed, "Input file not found")
		p.syncJobRecord(jobID, p.logger)
		p.announceQueue(p.logger)
		return nil
	}

	err = p.store.Update(jobID, func(j *queue.Job) {
		j.Status = queue.Pending
		j.StartedAt = nil
		j.CompletedAt = nil
		j.ErrorMessage = ""
		j.RetryCount++
	})
	if err != nil {
		return err
	}
	p.notifier.SendJobUpdate(jobID, queue.Pending, "retried by operator")
	p.syncJobRecord(jobID, p.logger)
	p.announceQueue(p.logger)
	return nil
}

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"filejobrouter/internal/logging"
	"filejobrouter/internal/queue"
)

const (
	userAgent        = "FileJobRouter-Go/0.1.0"
	heartbeatInterval = 5 * time.Second
	pollInterval      = 2 * time.Second
	requestTimeout    = 5 * time.Second
	eventQueueSize    = 256
)

// backoffSchedule is the reconnect delay ladder from §4.5, reused both after
// a send failure and after an endpoint swap.
var backoffSchedule = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// RetryHandler is invoked when the UI sends a retry_job command. It is
// satisfied by processor.Processor.RetryJob.
type RetryHandler func(jobID string) error

// Notifier is the C5 push channel. It is safe for concurrent use by
// multiple goroutines calling the Send* methods.
type Notifier struct {
	candidates []string
	client     *http.Client
	logger     *slog.Logger
	onRetry    RetryHandler

	events chan event

	heartbeatInterval time.Duration
	pollInterval      time.Duration

	mu          sync.Mutex
	activeIndex int
	failures    int
}

// Config carries the Notifier's static dependencies.
type Config struct {
	CandidateURLs []string
	OnRetryJob    RetryHandler
	Logger        *slog.Logger
	HTTPClient    *http.Client
}

// New constructs a Notifier. CandidateURLs is tried in order on every
// (re)connect attempt; an empty list yields a Notifier that only logs.
func New(cfg Config) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Notifier{
		candidates:        append([]string{}, cfg.CandidateURLs...),
		client:            client,
		logger:            logging.NewComponentLogger(logger, "notifier"),
		onRetry:           cfg.OnRetryJob,
		events:            make(chan event, eventQueueSize),
		heartbeatInterval: heartbeatInterval,
		pollInterval:      pollInterval,
	}
}

// heartbeatOverride replaces the heartbeat period; used by tests so they
// don't have to wait out the real 5s cadence.
func (n *Notifier) heartbeatOverride(d time.Duration) {
	n.heartbeatInterval = d
}

// pollOverride replaces the command-poll period; used by tests so they
// don't have to wait out the real 2s cadence.
func (n *Notifier) pollOverride(d time.Duration) {
	n.pollInterval = d
}

// Run drives the heartbeat timer, the outbound event sender, and the
// inbound command poll until ctx is cancelled. It is the "one task for the
// Notifier heartbeat timer" and the command-poll task described in §5.
func (n *Notifier) Run(ctx context.Context) {
	if len(n.candidates) == 0 {
		n.logger.Warn("no notifier endpoints configured, running in log-only mode")
	}

	heartbeat := time.NewTicker(n.heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(n.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			n.enqueue(event{Type: typeSystemStatus, State: stateAlive})
		case <-poll.C:
			n.pollCommands(ctx)
		case ev := <-n.events:
			n.send(ctx, ev)
		}
	}
}

// SendSystemStatusUpdate implements the system_status outbound event.
func (n *Notifier) SendSystemStatusUpdate(state, msg string) {
	n.enqueue(event{Type: typeSystemStatus, State: state, Msg: msg})
}

// SendJobUpdate implements the job_update outbound event and satisfies
// processor.Notifier.
func (n *Notifier) SendJobUpdate(jobID string, status queue.Status, msg string) {
	n.enqueue(event{Type: typeJobUpdate, JobID: jobID, Status: status.String(), Msg: msg})
}

// SendQueueUpdate implements the queue_update outbound event and satisfies
// processor.Notifier.
func (n *Notifier) SendQueueUpdate(jobs []queue.Job) {
	n.enqueue(event{Type: typeQueueUpdate, Jobs: jobs})
}

// SendLogUpdate implements the log_update outbound event.
func (n *Notifier) SendLogUpdate(line string) {
	n.enqueue(event{Type: typeLogUpdate, Line: line})
}

// enqueue never blocks: a full queue means the UI connection is badly
// backed up, so the oldest event is dropped in favor of the newest one
// (§4.5: disconnected state must never block the Processor).
func (n *Notifier) enqueue(ev event) {
	select {
	case n.events <- ev:
	default:
		select {
		case <-n.events:
		default:
		}
		select {
		case n.events <- ev:
		default:
		}
		n.logger.Warn("notifier event queue full, dropped oldest event", logging.String("event_type", ev.Type))
	}
}

func (n *Notifier) send(ctx context.Context, ev event) {
	endpoint, ok := n.currentEndpoint()
	if !ok {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		n.logger.Warn("event encode failed", logging.Error(err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := strings.TrimRight(endpoint, "/") + "/events"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("build notifier request failed", logging.Error(err))
		return
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.recordFailure(err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		n.recordFailure(fmt.Errorf("notifier endpoint returned %d", resp.StatusCode))
		return
	}
	n.recordSuccess()
}

func (n *Notifier) pollCommands(ctx context.Context) {
	endpoint, ok := n.currentEndpoint()
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := strings.TrimRight(endpoint, "/") + "/commands"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		n.recordFailure(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.recordFailure(fmt.Errorf("notifier endpoint returned %d", resp.StatusCode))
		return
	}

	var commands []command
	if err := json.NewDecoder(resp.Body).Decode(&commands); err != nil {
		if err != io.EOF {
			n.logger.Warn("command poll decode failed", logging.Error(err))
		}
		return
	}
	n.recordSuccess()

	for _, cmd := range commands {
		if cmd.Type != typeRetryJob || cmd.JobID == "" {
			continue
		}
		if n.onRetry == nil {
			continue
		}
		if err := n.onRetry(cmd.JobID); err != nil {
			n.logger.Warn("retry command handling failed", logging.String("job_id", cmd.JobID), logging.Error(err))
		}
	}
}

// currentEndpoint returns the active candidate, applying the backoff
// schedule when the active endpoint has been failing. Ok is false only
// when no endpoints are configured.
func (n *Notifier) currentEndpoint() (string, bool) {
	n.mu.Lock()
	if len(n.candidates) == 0 {
		n.mu.Unlock()
		return "", false
	}
	var delay time.Duration
	if n.failures > 0 {
		delay = backoffSchedule[len(backoffSchedule)-1]
		if n.failures-1 < len(backoffSchedule) {
			delay = backoffSchedule[n.failures-1]
		}
	}
	endpoint := n.candidates[n.activeIndex%len(n.candidates)]
	n.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return endpoint, true
}

func (n *Notifier) recordFailure(err error) {
	n.mu.Lock()
	n.failures++
	failures := n.failures
	if failures > 1 {
		n.activeIndex++
	}
	n.mu.Unlock()
	n.logger.Warn("notifier send failed", logging.Error(err), logging.Int("consecutive_failures", failures))
}

func (n *Notifier) recordSuccess() {
	n.mu.Lock()
	n.failures = 0
	n.mu.Unlock()
}

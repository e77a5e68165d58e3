package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"filejobrouter/internal/queue"
)

type capturedServer struct {
	mu       sync.Mutex
	events   []event
	commands []command
}

func newCapturedServer(t *testing.T) (*httptest.Server, *capturedServer) {
	t.Helper()
	cap := &capturedServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var ev event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cap.mu.Lock()
		cap.events = append(cap.events, ev)
		pending := cap.commands
		cap.commands = nil
		cap.mu.Unlock()
		_ = pending
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/commands", func(w http.ResponseWriter, r *http.Request) {
		cap.mu.Lock()
		pending := cap.commands
		cap.commands = nil
		cap.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pending)
	})
	srv := httptest.NewServer(mux)
	return srv, cap
}

func (c *capturedServer) queueCommand(cmd command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd)
}

func (c *capturedServer) eventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *capturedServer) hasEventType(t string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func TestSendJobUpdateReachesServer(t *testing.T) {
	srv, cap := newCapturedServer(t)
	defer srv.Close()

	n := New(Config{CandidateURLs: []string{srv.URL}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.SendJobUpdate("j1", queue.Completed, "")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cap.hasEventType(typeJobUpdate) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected job_update event to reach server")
}

func TestHeartbeatEmitsSystemStatus(t *testing.T) {
	srv, cap := newCapturedServer(t)
	defer srv.Close()

	n := New(Config{CandidateURLs: []string{srv.URL}})
	n.heartbeatOverride(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cap.hasEventType(typeSystemStatus) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected at least one heartbeat system_status event")
}

func TestRetryCommandInvokesHandler(t *testing.T) {
	srv, cap := newCapturedServer(t)
	defer srv.Close()

	var mu sync.Mutex
	var received string
	n := New(Config{
		CandidateURLs: []string{srv.URL},
		OnRetryJob: func(jobID string) error {
			mu.Lock()
			received = jobID
			mu.Unlock()
			return nil
		},
	})
	n.pollOverride(10 * time.Millisecond)
	cap.queueCommand(command{Type: typeRetryJob, JobID: "j9"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := received
		mu.Unlock()
		if got == "j9" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected retry_job command to invoke handler with job id j9")
}

func TestSendWithNoCandidatesDoesNotPanic(t *testing.T) {
	n := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	n.SendQueueUpdate(nil)
	n.Run(ctx)
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	n := New(Config{})
	for i := 0; i < eventQueueSize+10; i++ {
		n.SendLogUpdate("line")
	}
	if len(n.events) != eventQueueSize {
		t.Fatalf("events channel length = %d, want %d", len(n.events), eventQueueSize)
	}
}

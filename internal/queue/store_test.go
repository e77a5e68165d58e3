package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), "2026-08-03", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestLoadCreatesEmptyQueueWhenAbsent(t *testing.T) {
	store := newTestStore(t)

	jobs, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("Load: expected empty queue, got %d jobs", len(jobs))
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store := newTestStore(t)

	want := []Job{
		{ID: "a", InputPath: "/w/a.txt", TargetApp: "abc", Status: Pending, CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{ID: "b", InputPath: "/w/b.txt", TargetApp: "abc", Status: Completed, CreatedAt: time.Now().UTC().Truncate(time.Second)},
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load: got %d jobs, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Status != want[i].Status {
			t.Errorf("job %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAddRejectsDuplicateActiveInputPath(t *testing.T) {
	store := newTestStore(t)

	first := Job{ID: "a", InputPath: "/w/a.txt", Status: Pending, CreatedAt: time.Now()}
	if err := store.Add(first); err != nil {
		t.Fatalf("Add (first): %v", err)
	}

	second := Job{ID: "b", InputPath: "/w/a.txt", Status: Pending, CreatedAt: time.Now()}
	if err := store.Add(second); err != ErrDuplicateActive {
		t.Fatalf("Add (duplicate) = %v, want ErrDuplicateActive", err)
	}
}

func TestAddAllowsReenqueueAfterCompletion(t *testing.T) {
	store := newTestStore(t)

	done := Job{ID: "a", InputPath: "/w/a.txt", Status: Completed, CreatedAt: time.Now()}
	if err := store.Add(done); err != nil {
		t.Fatalf("Add (completed): %v", err)
	}

	again := Job{ID: "b", InputPath: "/w/a.txt", Status: Pending, CreatedAt: time.Now()}
	if err := store.Add(again); err != nil {
		t.Fatalf("Add (re-enqueue after completion): %v", err)
	}
}

func TestNextPendingReturnsOldestByCreatedAt(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC()
	newer := Job{ID: "newer", InputPath: "/w/newer.txt", Status: Pending, CreatedAt: now}
	older := Job{ID: "older", InputPath: "/w/older.txt", Status: Pending, CreatedAt: now.Add(-time.Hour)}
	if err := store.Add(newer); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(older); err != nil {
		t.Fatalf("Add: %v", err)
	}

	job, ok, err := store.NextPending()
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if !ok {
		t.Fatal("NextPending: expected a job, got none")
	}
	if job.ID != "older" {
		t.Fatalf("NextPending: got %q, want %q", job.ID, "older")
	}
}

func TestUpdateMutatesAndPersists(t *testing.T) {
	store := newTestStore(t)
	if err := store.Add(Job{ID: "a", InputPath: "/w/a.txt", Status: Pending, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := store.Update("a", func(j *Job) { j.Status = Processing }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	job, ok, err := store.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || job.Status != Processing {
		t.Fatalf("Get after Update: job=%+v ok=%v", job, ok)
	}
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	if err := store.Update("missing", func(j *Job) {}); err != ErrNotFound {
		t.Fatalf("Update (missing) = %v, want ErrNotFound", err)
	}
}

func TestRecoverResetsProcessingJobs(t *testing.T) {
	store := newTestStore(t)
	started := time.Now()
	if err := store.Add(Job{ID: "a", InputPath: "/w/a.txt", Status: Processing, StartedAt: &started, CreatedAt: started}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, err := store.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("Recover: recovered %d jobs, want 1", n)
	}

	job, _, err := store.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != Pending {
		t.Errorf("job.Status = %v, want Pending", job.Status)
	}
	if job.StartedAt != nil {
		t.Error("job.StartedAt: expected nil after recovery")
	}
	if job.ErrorMessage != "Recovered from previous session" {
		t.Errorf("job.ErrorMessage = %q, want recovery message", job.ErrorMessage)
	}
}

func TestRecoverIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	started := time.Now()
	if err := store.Add(Job{ID: "a", InputPath: "/w/a.txt", Status: Processing, StartedAt: &started, CreatedAt: started}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := store.Recover(); err != nil {
		t.Fatalf("Recover (first): %v", err)
	}
	first, _, _ := store.Get("a")

	if _, err := store.Recover(); err != nil {
		t.Fatalf("Recover (second): %v", err)
	}
	second, _, _ := store.Get("a")

	if first.Status != second.Status || first.ErrorMessage != second.ErrorMessage {
		t.Errorf("Recover not idempotent: first=%+v second=%+v", first, second)
	}
}

func TestSaveWritesValidJSONAtEveryObservableInstant(t *testing.T) {
	store := newTestStore(t)
	jobs := []Job{{ID: "a", InputPath: "/w/a.txt", Status: Pending, CreatedAt: time.Now()}}
	if err := store.Save(jobs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read queue file: %v", err)
	}
	var decoded []Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("queue file is not valid JSON: %v", err)
	}

	if _, err := os.Stat(filepath.Join(store.Dir(), queueFileName+".tmp")); !os.IsNotExist(err) {
		t.Error("expected temp file to be removed after Save")
	}
}

func TestWriteJobRecordUsesStringStatus(t *testing.T) {
	dir := t.TempDir()
	job := Job{ID: "a", InputPath: "/w/a.txt", TargetApp: "abc", Status: Completed, CreatedAt: time.Now(), UserName: "alice"}

	if err := WriteJobRecord(dir, "2026-08-03", job); err != nil {
		t.Fatalf("WriteJobRecord: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "alice", "2026-08-03", "a.json"))
	if err != nil {
		t.Fatalf("read job record: %v", err)
	}
	var record JobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode job record: %v", err)
	}
	if record.Status != "Completed" {
		t.Errorf("record.Status = %q, want %q", record.Status, "Completed")
	}
}

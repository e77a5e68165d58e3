package devicelock

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lock := New(dir, "TestLock")

	if err := lock.Acquire(time.Second, "job-1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	owner, ok := lock.CurrentOwner()
	if !ok {
		t.Fatal("CurrentOwner: expected an owner record after Acquire")
	}
	if owner.PID != os.Getpid() {
		t.Errorf("owner.PID = %d, want %d", owner.PID, os.Getpid())
	}
	if owner.JobID != "job-1" {
		t.Errorf("owner.JobID = %q, want %q", owner.JobID, "job-1")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := lock.CurrentOwner(); ok {
		t.Error("CurrentOwner: expected no owner record after Release")
	}
}

func TestAcquireTimesOutWhenHeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()
	holder := New(dir, "TestLock")
	if err := holder.Acquire(time.Second, "holder-job"); err != nil {
		t.Fatalf("Acquire (holder): %v", err)
	}
	defer holder.Release()

	contender := New(dir, "TestLock")
	err := contender.Acquire(150*time.Millisecond, "contender-job")
	if err != ErrTimeout {
		t.Fatalf("Acquire (contender) = %v, want ErrTimeout", err)
	}
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()
	lock := New(dir, "TestLock")

	stale := Owner{PID: 999999999, User: "ghost", AcquiredAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal owner: %v", err)
	}
	if err := os.WriteFile(lock.Path(), data, 0o644); err != nil {
		t.Fatalf("seed stale lock file: %v", err)
	}

	if err := lock.Acquire(2*time.Second, "new-job"); err != nil {
		t.Fatalf("Acquire: expected stale lock to be reclaimed, got %v", err)
	}
	owner, ok := lock.CurrentOwner()
	if !ok || owner.JobID != "new-job" {
		t.Fatalf("owner after reclaim = %+v, ok=%v", owner, ok)
	}
}

func TestProcessAliveForSelf(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("processAlive(os.Getpid()) = false, want true")
	}
}

func TestProcessAliveForUnlikelyPID(t *testing.T) {
	if processAlive(999999999) {
		t.Error("processAlive(999999999) = true, want false")
	}
}

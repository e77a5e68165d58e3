package instanceguard

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireWritesPIDFile(t *testing.T) {
	dir := t.TempDir()
	g := New(dir)

	if err := g.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer g.Release()

	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("pid file contents %q not an int: %v", data, err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireFailsWhenAlreadyHeld(t *testing.T) {
	dir := t.TempDir()
	first := New(dir)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Release()

	second := New(dir)
	if err := second.Acquire(); err != ErrAlreadyRunning {
		t.Fatalf("second Acquire error = %v, want ErrAlreadyRunning", err)
	}
}

func TestReleaseDeletesPIDFile(t *testing.T) {
	dir := t.TempDir()
	g := New(dir)
	if err := g.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, lockFileName)); !os.IsNotExist(err) {
		t.Error("expected pid file to be removed after Release")
	}
}

func TestAcquireAfterReleaseSucceeds(t *testing.T) {
	dir := t.TempDir()
	g := New(dir)
	if err := g.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again := New(dir)
	if err := again.Acquire(); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	defer again.Release()
}

package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAwaitStableSucceedsForUnchangingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if !awaitStable(path, 3, time.Millisecond) {
		t.Fatal("awaitStable: expected stable file to be detected")
	}
}

func TestAwaitStableFailsForMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.txt")

	if awaitStable(path, 3, time.Millisecond) {
		t.Fatal("awaitStable: expected false for missing file")
	}
}

func TestAwaitStableFailsWithOnlyOneSample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if awaitStable(path, 1, time.Millisecond) {
		t.Fatal("awaitStable: a single sample can never confirm two consecutive equal lengths")
	}
}

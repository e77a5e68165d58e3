package processor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts worker subprocess execution for testability.
type Executor interface {
	// Run starts binary with args, draining stdout/stderr concurrently, and
	// waits for completion or ctx cancellation. It returns the
	// process's exit code (or -1 if it could not be determined) and the
	// captured stderr text.
	Run(ctx context.Context, binary string, args []string) (exitCode int, stderr string, err error)
}

// commandExecutor is the default Executor, spawning a real OS process with
// stdout/stderr piped and drained on dedicated goroutines so neither pipe's
// buffer can deadlock the wait (grounded on the teacher's
// internal/services/makemkv commandExecutor).
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (int, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, "", fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return -1, "", fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, "", fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var stderrBuf strings.Builder
	var mu sync.Mutex

	drain := func(r io.Reader, capture bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if capture {
				mu.Lock()
				stderrBuf.WriteString(line)
				stderrBuf.WriteByte('\n')
				mu.Unlock()
			}
		}
	}

	wg.Add(2)
	go drain(stdout, false)
	go drain(stderrPipe, true)
	wg.Wait()

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return -1, strings.TrimSpace(stderrBuf.String()), fmt.Errorf("wait command: %w", waitErr)
		}
	}
	return exitCode, strings.TrimSpace(stderrBuf.String()), nil
}


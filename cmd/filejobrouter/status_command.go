package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"filejobrouter/internal/config"
	"filejobrouter/internal/devicelock"
	"filejobrouter/internal/instanceguard"
	"filejobrouter/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine, queue, and device status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				colorize := shouldColorize(cmd.OutOrStdout())
				return renderStatus(cmd, cfg, store, colorize)
			})
		},
	}
}

func renderStatus(cmd *cobra.Command, cfg *config.Config, store *queue.Store, colorize bool) error {
	out := cmd.OutOrStdout()

	running := engineRunning(filepath.Join(cfg.LogDirectory, currentDay()))
	if running {
		fmt.Fprintln(out, renderStatusLine("engine", statusOK, "running", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("engine", statusWarn, "not running", colorize))
	}

	jobs, err := store.List()
	if err != nil {
		return err
	}
	counts := map[queue.Status]int{}
	for _, job := range jobs {
		counts[job.Status]++
	}
	fmt.Fprintln(out, renderStatusLine("queue", statusInfo,
		fmt.Sprintf("%d pending, %d processing, %d failed, %d completed",
			counts[queue.Pending], counts[queue.Processing], counts[queue.Failed], counts[queue.Completed]), colorize))

	lock := devicelock.New(config.LockDirectory(), cfg.MutexName)
	if owner, held := lock.CurrentOwner(); held {
		fmt.Fprintln(out, renderStatusLine("device", statusWarn,
			fmt.Sprintf("held by pid %d (job %s)", owner.PID, owner.JobID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("device", statusOK, "free", colorize))
	}
	return nil
}

// engineRunning reports whether the Instance Guard's PID lock file in logDir
// (the day-local log directory) is currently held by a live process. It
// probes by taking the lock; when the lock is free it is released again at
// once, which removes the PID file.
func engineRunning(logDir string) bool {
	guard := instanceguard.New(logDir)
	// Acquire fails with ErrAlreadyRunning precisely when a live engine
	// holds the lock; any other outcome means nothing is running.
	if err := guard.Acquire(); err != nil {
		return err == instanceguard.ErrAlreadyRunning
	}
	_ = guard.Release()
	return false
}

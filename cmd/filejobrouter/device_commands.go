package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filejobrouter/internal/config"
	"filejobrouter/internal/devicelock"
)

func newDeviceCommand(ctx *commandContext) *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect the shared device lock",
	}
	deviceCmd.AddCommand(newDeviceStatusCommand(ctx))
	return deviceCmd
}

func newDeviceStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who currently holds the device lock, if anyone",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := devicelock.New(config.LockDirectory(), cfg.MutexName)
			owner, held := lock.CurrentOwner()
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if !held {
				fmt.Fprintln(out, renderStatusLine("device", statusOK, "free", colorize))
				return nil
			}
			msg := fmt.Sprintf("held by pid %d (user %s, job %s) since %s",
				owner.PID, owner.User, owner.JobID, owner.AcquiredAt.Format("15:04:05"))
			fmt.Fprintln(out, renderStatusLine("device", statusWarn, msg, colorize))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forceReleaseReason string

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect and administer request locks",
}

var lockStatusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Check whether a request lock is held",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		locked, err := env.guard.IsLocked(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if locked {
			fmt.Printf("request %s is locked\n", args[0])
		} else {
			fmt.Printf("request %s is not locked\n", args[0])
		}
		return nil
	},
}

var lockForceReleaseCmd = &cobra.Command{
	Use:   "force-release <request-id>",
	Short: "Drop a request lock unconditionally (administrative override)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.guard.ForceRelease(cmd.Context(), args[0], forceReleaseReason); err != nil {
			return err
		}
		fmt.Printf("lock for %s force-released\n", args[0])
		return nil
	},
}

func init() {
	lockForceReleaseCmd.Flags().StringVar(&forceReleaseReason, "reason", "", "why the lock is being dropped (required)")
	_ = lockForceReleaseCmd.MarkFlagRequired("reason")

	lockCmd.AddCommand(lockStatusCmd, lockForceReleaseCmd)
	rootCmd.AddCommand(lockCmd)
}

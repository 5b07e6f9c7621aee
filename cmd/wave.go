package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var waveTier int

var waveCmd = &cobra.Command{
	Use:   "wave <request-id>",
	Short: "Notify the advisors at one escalation tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tier := waveTier
		if tier == 0 {
			req, err := env.escStore.GetRequest(ctx, args[0])
			if err != nil {
				return err
			}
			tier = req.TierLevel
			if tier < 1 {
				tier = 1
			}
		}

		result, err := env.escalation.ExecuteWave(ctx, args[0], tier)
		if err != nil {
			return err
		}

		fmt.Printf("wave tier %d for %s: %d notified, %d failed\n",
			result.Tier, result.RequestID, result.Notified, result.Failed)
		return nil
	},
}

func init() {
	waveCmd.Flags().IntVar(&waveTier, "tier", 0, "tier to notify (default: the request's current tier)")
	rootCmd.AddCommand(waveCmd)
}

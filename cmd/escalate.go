package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var escalateCmd = &cobra.Command{
	Use:   "escalate <request-id>",
	Short: "Build the tiered advisor notification plan for a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.escalation.Escalate(ctx, args[0])
		if err != nil {
			return err
		}

		if !result.Success {
			fmt.Printf("escalation failed: %s (candidates=%d excluded=%d)\n",
				result.Reason, result.Candidates, len(result.Excluded))
			return nil
		}

		fmt.Printf("escalation plan for %s: %d candidates, %d eligible, %d excluded",
			result.RequestID, result.Candidates, result.Eligible, len(result.Excluded))
		if result.Degraded {
			fmt.Print(" (coverage degraded)")
		}
		fmt.Println()

		byTier := map[int]int{}
		for _, rec := range result.Records {
			byTier[rec.Tier]++
		}
		for tier := 1; tier <= len(cfg.Escalation.Tiers); tier++ {
			if byTier[tier] > 0 {
				fmt.Printf("  tier %d: %d advisors\n", tier, byTier[tier])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(escalateCmd)
}

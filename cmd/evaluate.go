package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <request-id>",
	Short: "Run the evaluation pass for a request",
	Long:  "Takes the request lock, scores every line across submitted offers, applies the coverage gate, and commits the adjudications atomically.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		requestID := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		lease, err := env.guard.TryAcquire(ctx, requestID)
		if err != nil {
			return err
		}
		defer func() {
			if err := env.guard.Release(ctx, lease); err != nil {
				zap.L().Warn("lock release failed", zap.String("request_id", requestID), zap.Error(err))
			}
		}()

		out, err := env.evaluation.EvaluateWithTimeout(ctx, requestID)
		if err != nil {
			return err
		}

		switch {
		case out.TimedOut:
			fmt.Printf("evaluation of %s timed out; no state was written\n", requestID)
		case out.Err != nil:
			return out.Err
		case !out.Success:
			fmt.Printf("evaluation of %s finished without awards: %s\n", requestID, out.Reason)
		default:
			fmt.Printf("evaluated %s: %d/%d lines awarded across %d offers",
				requestID, out.LinesAwarded, out.LinesTotal, out.OffersEvaluated)
			if out.Mixed {
				fmt.Printf(" (mixed, %d winners)", out.DistinctWinners)
			}
			fmt.Printf(", total awarded %.2f\n", out.TotalAwarded)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

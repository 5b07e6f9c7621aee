package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Show a request's lifecycle state and offer progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		requestID := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req, err := env.escStore.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}

		submitted, err := env.escStore.CountSubmittedOffers(ctx, requestID)
		if err != nil {
			return err
		}

		locked, err := env.guard.IsLocked(ctx, requestID)
		if err != nil {
			return err
		}

		fmt.Printf("request %s\n", req.ID)
		fmt.Printf("  state:            %s\n", req.State)
		fmt.Printf("  tier:             %d\n", req.TierLevel)
		fmt.Printf("  submitted offers: %d of %d desired\n", submitted, req.DesiredOffers)
		fmt.Printf("  locked:           %v\n", locked)
		if req.EscalatedAt != nil {
			fmt.Printf("  escalated at:     %s\n", req.EscalatedAt.Format("2006-01-02 15:04:05"))
		}
		if req.EvaluatedAt != nil {
			fmt.Printf("  evaluated at:     %s\n", req.EvaluatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("  total awarded:    %.2f\n", req.TotalAwarded)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

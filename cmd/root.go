package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/partsbid/matching-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "matching-engine",
	Short: "Reverse-auction matching engine for auto-part requests",
	Long:  "Escalates part requests to advisors in scored notification tiers, collects offers, and adjudicates each line to the best qualified offer.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/comps-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "comps-intel",
	Short: "Comparable company and transaction extraction from workbooks",
	Long:  "Downloads candidate workbooks, classifies their sheets, extracts transaction comps and comparable companies with an LLM, and consolidates them into one ranked report per subject company.",
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

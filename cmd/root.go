package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/freight-triage/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "freight-triage",
	Short: "Cumulative shipment state and quote-readiness triage",
	Long: `Merges per-email shipment extractions into one record per thread, checks
whether a quote can be produced, and picks the next reply action.

Commands:
  replay    process recorded thread fixtures turn by turn and print decisions
  evaluate  check a single shipment state for quote readiness
  inspect   show a stored thread with its decision and extraction history
  stats     summarize stored decisions and missing fields
  migrate   create or upgrade the store schema

Configuration comes from config.yaml in the working directory and TRIAGE_*
environment variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
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

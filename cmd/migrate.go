package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the thread and event tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("inspect"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("migrate: tables ready", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	a := &app{log: log}
	rootCmd := &cobra.Command{
		Use:          "casectl",
		Short:        "Operator tooling for the case management service",
		SilenceUsage: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.AddCommand(a.migrateCmd())
	rootCmd.AddCommand(a.hospitalCmd())
	rootCmd.AddCommand(a.userCmd())
	rootCmd.AddCommand(a.eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bloodcell-inference-service/internal/adapters/secondary/logfile"
	"bloodcell-inference-service/internal/core/services"
)

var cleanupDays int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Manage per-request log files",
}

var logsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete request logs older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		days := cleanupDays
		if !cmd.Flags().Changed("days") {
			days = cfg.RequestLogs.RetentionDays
		}

		store, err := logfile.NewStore(cfg.RequestLogs.Dir, log.StandardLogger())
		if err != nil {
			return err
		}
		removed, err := services.NewLogService(store).Cleanup(days)
		if err != nil {
			return err
		}
		fmt.Printf("Cleaned up %d log file(s) older than %d days\n", removed, days)
		return nil
	},
}

func init() {
	logsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 7, "delete logs whose last write is older than this many days")
	logsCmd.AddCommand(logsCleanupCmd)
	rootCmd.AddCommand(logsCmd)
}

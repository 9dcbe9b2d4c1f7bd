package main

import (
	"fmt"
	"time"

	"sharkninja-client/internal/history"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <dsn> <property>",
	Short: "Show recorded values of one device property",
	Long: `Print the locally recorded history of a device property, newest
first. Snapshots are written by the devices command; no network access is
needed here.`,
	Args: cobra.ExactArgs(2),
	RunE: runHistoryCommand,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of snapshots to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistoryCommand(cmd *cobra.Command, args []string) error {
	dsn, property := args[0], args[1]

	cfg, logger, err := loadOffline()
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.HistoryPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	snapshots, err := store.List(dsn, property, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(snapshots) == 0 {
		fmt.Printf("No recorded values for %s on %s.\n", property, dsn)
		return nil
	}

	for _, snap := range snapshots {
		fmt.Printf("%s  %s\n", snap.RecordedAt.Format(time.RFC3339), snap.Value)
	}
	return nil
}

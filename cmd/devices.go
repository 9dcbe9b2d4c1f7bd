package main

import (
	"context"
	"fmt"
	"time"

	"sharkninja-client/internal/devices"
	"sharkninja-client/internal/history"

	"github.com/spf13/cobra"
)

var devicesSnapshot bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the robot vacuums on the account",
	Long: `Sign in, list the robots on the account, and print their current
state. Unless --snapshot=false is given, each robot's property values are
also recorded in the local history database.`,
	RunE: runDevicesCommand,
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesSnapshot, "snapshot", true, "record a property snapshot in the history database")
	rootCmd.AddCommand(devicesCmd)
}

func runDevicesCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if err := a.session.SignIn(ctx); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	vacuums, err := devices.GetVacuums(ctx, a.api, a.logger, true)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(vacuums) == 0 {
		fmt.Println("No robots found on this account.")
		return nil
	}

	var store *history.Store
	if devicesSnapshot {
		store, err = history.NewStore(a.cfg.HistoryPath, a.logger)
		if err != nil {
			// Snapshots are a convenience; listing still succeeds.
			a.logger.WithError(err).Warn("History database unavailable, skipping snapshot")
		} else {
			defer store.Close()
		}
	}

	for _, vac := range vacuums {
		fmt.Printf("%s (%s, %s)\n", vac.Name(), vac.DSN(), vac.OEMModel())
		printVacuumState(vac)
		fmt.Println()

		if store != nil {
			if err := store.Record(vac.DSN(), vac.Properties()); err != nil {
				a.logger.WithError(err).WithField("dsn", vac.DSN()).Warn("Failed to record snapshot")
			}
		}
	}

	return nil
}

func printVacuumState(vac *devices.Vacuum) {
	if level, ok := vac.BatteryLevel(); ok {
		fmt.Printf("  Battery:        %d%%\n", level)
	}
	if mode, ok := vac.OperatingMode(); ok {
		fmt.Printf("  Operating mode: %s\n", mode)
	}
	if power, ok := vac.PowerMode(); ok {
		fmt.Printf("  Power mode:     %s\n", power)
	}
	if vac.Recharging() {
		fmt.Println("  Recharging to resume")
	}
	if text := vac.ErrorText(); text != "" {
		fmt.Printf("  Error:          %s\n", text)
	}
}

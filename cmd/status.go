package main

import (
	"context"
	"fmt"
	"time"

	"sharkninja-client/internal/devices"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <dsn>",
	Short: "Show the current state of one robot",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCommand(cmd *cobra.Command, args []string) error {
	dsn := args[0]

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

	vac, err := findVacuum(ctx, a, dsn)
	if err != nil {
		return err
	}

	if err := vac.Update(ctx); err != nil {
		return fmt.Errorf("failed to fetch device state: %w", err)
	}

	fmt.Printf("%s (%s, %s)\n", vac.Name(), vac.DSN(), vac.OEMModel())
	printVacuumState(vac)
	return nil
}

// findVacuum resolves a DSN to a vacuum on the account without fetching
// property state.
func findVacuum(ctx context.Context, a *app, dsn string) (*devices.Vacuum, error) {
	vacuums, err := devices.GetVacuums(ctx, a.api, a.logger, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	for _, vac := range vacuums {
		if vac.DSN() == dsn {
			return vac, nil
		}
	}
	return nil, fmt.Errorf("no robot with DSN %s on this account", dsn)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sharkninja-client/internal/devices"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <dsn> <property> <value>",
	Short: "Write one property on a robot",
	Long: `Write a property value on a robot. Operating_Mode and Power_Mode
accept their mode names (stop, pause, start, return; normal, eco, max);
other properties take a JSON value.

Examples:
  sharkninja-client set AC000W000000001 Operating_Mode start
  sharkninja-client set AC000W000000001 Power_Mode max
  sharkninja-client set AC000W000000001 Find_Device 1`,
	Args: cobra.ExactArgs(3),
	RunE: runSetCommand,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSetCommand(cmd *cobra.Command, args []string) error {
	dsn, property, raw := args[0], args[1], args[2]

	value, err := parsePropertyValue(property, raw)
	if err != nil {
		return err
	}

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

	if err := vac.SetProperty(ctx, property, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", property, err)
	}

	fmt.Printf("✓ %s = %v on %s\n", property, value, vac.Name())
	return nil
}

// parsePropertyValue converts the CLI argument into the wire value. Mode
// properties take their names; everything else is parsed as JSON, falling
// back to a plain string.
func parsePropertyValue(property, raw string) (interface{}, error) {
	switch property {
	case devices.PropOperatingMode:
		mode, err := devices.ParseOperatingMode(raw)
		if err != nil {
			return nil, err
		}
		return int(mode), nil
	case devices.PropPowerMode:
		mode, err := devices.ParsePowerMode(raw)
		if err != nil {
			return nil, err
		}
		return int(mode), nil
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw, nil
	}
	return value, nil
}

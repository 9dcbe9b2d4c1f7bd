package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign in and immediately sign out",
	Long: `Perform a sign-in/sign-out round trip. Tokens are never persisted
between invocations, so this mainly verifies the account can complete a full
session lifecycle against the configured endpoints.`,
	RunE: runLogoutCommand,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogoutCommand(cmd *cobra.Command, args []string) error {
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

	a.session.SignOut()
	fmt.Println("✓ Session credentials cleared")
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify account credentials against the SharkNinja cloud",
	Long: `Sign in with the configured account and report which strategy
succeeded and when the issued token expires. Nothing is persisted; this
command exists to verify credentials and endpoint configuration.`,
	RunE: runLoginCommand,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLoginCommand(cmd *cobra.Command, args []string) error {
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

	cred := a.session.Credential()
	fmt.Printf("✓ Signed in as %s\n", a.cfg.Email)
	fmt.Printf("Strategy: %s\n", cred.Strategy)
	fmt.Printf("Token expires: %s\n", cred.ExpiresAt.Format(time.RFC3339))
	if cred.RefreshToken != "" {
		fmt.Println("Refresh token: issued")
	} else {
		fmt.Println("Refresh token: not issued")
	}

	return nil
}

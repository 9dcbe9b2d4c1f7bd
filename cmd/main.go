package main

import (
	"fmt"
	"os"

	"sharkninja-client/internal/auth"
	"sharkninja-client/internal/client"
	"sharkninja-client/internal/config"
	"sharkninja-client/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	timeout    int
)

var rootCmd = &cobra.Command{
	Use:   "sharkninja-client",
	Short: "SharkNinja cloud client for Shark robot vacuums",
	Long: `A command-line client for the SharkNinja cloud API. It signs in with
your account credentials, lists the robot vacuums on the account, reads and
writes device properties, and keeps a local history of device state.

Credentials are read from the configuration file or SHARK_EMAIL and
SHARK_PASSWORD environment variables. Tokens are never persisted; each
invocation performs its own sign-in.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 60, "overall command timeout in seconds")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the client stack a subcommand needs. Build it with newApp and
// release it with Close.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	session *auth.Session
	api     *client.DeviceClient
}

// newApp loads configuration and wires the session, dispatcher, and device
// client. No network I/O happens until the first sign-in.
func newApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger := logging.Initialize(logLevel)
	if err := logging.SetupFileLogging(logger, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to set up file logging: %w", err)
	}

	if !cfg.HasAccount() {
		return nil, fmt.Errorf("no account configured: set email/password in the config file or SHARK_EMAIL/SHARK_PASSWORD")
	}

	session, err := auth.NewSession(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	dispatcher, err := client.NewDispatcher(session, logger)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	api, err := client.NewDeviceClient(cfg, dispatcher, logger)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create device client: %w", err)
	}

	return &app{cfg: cfg, logger: logger, session: session, api: api}, nil
}

// Close releases the session's pooled connections.
func (a *app) Close() {
	a.session.Close()
}

// loadOffline loads configuration and logging for commands that never touch
// the network, so they work without account credentials.
func loadOffline() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger := logging.Initialize(logLevel)
	if err := logging.SetupFileLogging(logger, cfg.LogFile); err != nil {
		return nil, nil, fmt.Errorf("failed to set up file logging: %w", err)
	}

	return cfg, logger, nil
}

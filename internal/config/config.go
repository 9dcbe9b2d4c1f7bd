package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Regional endpoint defaults. The SharkNinja IDP replaced the Ayla Networks
// login service, but device listing still falls back to the legacy Ayla URL.
const (
	USAuthURL   = "https://idp.iot-sharkninja.com/v1/login-message-shark"
	EUAuthURL   = "https://idp.eu.iot-sharkninja.com/v1/login-message-shark"
	USAPIURL    = "https://api.iot-sharkninja.com"
	EUAPIURL    = "https://api.eu.iot-sharkninja.com"
	USDeviceURL = "https://ads-field-39a9391a.aylanetworks.com"
	EUDeviceURL = "https://ads-eu.aylanetworks.com"

	// DefaultOIDCTokenURL is the Auth0 token endpoint used by the secondary
	// sign-in strategy.
	DefaultOIDCTokenURL = "https://login.sharkninja.com/oauth/token"
)

// Config represents the client configuration
type Config struct {
	// Account credentials
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`

	// Region selects the endpoint set: "us" or "eu"
	Region string `mapstructure:"region"`

	// Application credentials sent with the IDP login payload.
	// Both are optional; empty values are omitted from the payload.
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`

	// Endpoint overrides. When empty they are resolved from Region.
	AuthURL   string `mapstructure:"auth_url"`
	APIURL    string `mapstructure:"api_url"`
	DeviceURL string `mapstructure:"device_url"`

	// OIDC (Auth0) strategy configuration
	OIDCTokenURL string `mapstructure:"oidc_token_url"`
	OIDCClientID string `mapstructure:"oidc_client_id"`

	// Strategies is the ordered list of sign-in strategies to attempt
	Strategies []string `mapstructure:"strategies"`

	// Session configuration
	ExpirySkew     int `mapstructure:"expiry_skew"`     // seconds before expiry a token counts as expiring soon
	RequestTimeout int `mapstructure:"request_timeout"` // seconds

	// History database configuration
	HistoryPath string `mapstructure:"history_path"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Region:         "us",
		Strategies:     []string{"idp", "oidc"},
		ExpirySkew:     600,
		RequestTimeout: 30,
		HistoryPath:    "./sharkninja.db",
		LogLevel:       "info",
		LogFile:        "",
	}
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Look for config in current directory and common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/sharkninja-client")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sharkninja-client"))
		}
	}

	// Environment variable configuration
	v.SetEnvPrefix("SHARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ResolveEndpoints()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper. Every key is registered so
// SHARK_* environment overrides are picked up on Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("email", cfg.Email)
	v.SetDefault("password", cfg.Password)
	v.SetDefault("app_id", cfg.AppID)
	v.SetDefault("app_secret", cfg.AppSecret)
	v.SetDefault("auth_url", cfg.AuthURL)
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("device_url", cfg.DeviceURL)
	v.SetDefault("oidc_token_url", cfg.OIDCTokenURL)
	v.SetDefault("oidc_client_id", cfg.OIDCClientID)
	v.SetDefault("region", cfg.Region)
	v.SetDefault("strategies", cfg.Strategies)
	v.SetDefault("expiry_skew", cfg.ExpirySkew)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("history_path", cfg.HistoryPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
}

// ResolveEndpoints fills empty endpoint fields from the configured region.
// Explicit overrides are left untouched.
func (c *Config) ResolveEndpoints() {
	if c.AuthURL == "" {
		if c.Region == "eu" {
			c.AuthURL = EUAuthURL
		} else {
			c.AuthURL = USAuthURL
		}
	}
	if c.APIURL == "" {
		if c.Region == "eu" {
			c.APIURL = EUAPIURL
		} else {
			c.APIURL = USAPIURL
		}
	}
	if c.DeviceURL == "" {
		if c.Region == "eu" {
			c.DeviceURL = EUDeviceURL
		} else {
			c.DeviceURL = USDeviceURL
		}
	}
	if c.OIDCTokenURL == "" {
		c.OIDCTokenURL = DefaultOIDCTokenURL
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Region != "us" && c.Region != "eu" {
		return fmt.Errorf("region must be one of: us, eu")
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one sign-in strategy is required")
	}
	for _, name := range c.Strategies {
		if name != "idp" && name != "oidc" {
			return fmt.Errorf("unknown sign-in strategy %q (valid: idp, oidc)", name)
		}
	}

	if c.ExpirySkew <= 0 {
		return fmt.Errorf("expiry_skew must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	if c.HistoryPath == "" {
		return fmt.Errorf("history_path is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	return nil
}

// HasAccount returns true if account credentials are configured
func (c *Config) HasAccount() bool {
	return c.Email != "" && c.Password != ""
}

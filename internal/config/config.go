// Package config loads the authkit CLI configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"authkit/pkg/logging"
	"authkit/pkg/oauth"
)

const (
	userConfigDir  = ".config/authkit"
	configFileName = "config.yaml"
)

// Config is the authkit CLI configuration.
type Config struct {
	// Issuer is the authorization server's issuer URL, used for discovery.
	Issuer string `yaml:"issuer"`

	// ClientID identifies the client at the server.
	ClientID string `yaml:"client_id"`

	// ClientSecret is the confidential client secret, if any. It is
	// redacted in every formatted representation.
	ClientSecret oauth.RedactedSecret `yaml:"client_secret,omitempty"`

	// AuthMethod selects the token endpoint client authentication:
	// none, client_secret_basic, client_secret_post, client_secret_jwt,
	// or private_key_jwt.
	AuthMethod string `yaml:"auth_method,omitempty"`

	// SigningKeyPath points to the PEM file with the RSA key (and optional
	// certificate) for private_key_jwt.
	SigningKeyPath string `yaml:"signing_key_path,omitempty"`

	// RedirectURI is the loopback redirect URI for interactive flows.
	RedirectURI string `yaml:"redirect_uri,omitempty"`

	// Scope is the space-separated default scope.
	Scope string `yaml:"scope,omitempty"`

	// ResponseMode optionally forces a response binding (e.g. form_post).
	ResponseMode string `yaml:"response_mode,omitempty"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		RedirectURI: "http://127.0.0.1:8484/callback",
		AuthMethod:  "none",
		LogLevel:    "info",
	}
}

// DefaultPath returns the default configuration directory
// (~/.config/authkit).
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load loads the configuration from the given directory, falling back to
// defaults when no config.yaml exists. A .env file in the working directory
// is loaded first, then AUTHKIT_* environment variables override file values.
func Load(configPath string) (Config, error) {
	// Missing .env files are the normal case.
	_ = godotenv.Load()

	config := Default()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			applyEnvOverrides(&config)
			return config, config.Validate()
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("Config", "Loaded configuration from %s", configFilePath)

	applyEnvOverrides(&config)
	return config, config.Validate()
}

// applyEnvOverrides lets AUTHKIT_* environment variables take precedence over
// file values. The secret only ever enters through the environment or the
// file; it is never logged.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("AUTHKIT_ISSUER"); v != "" {
		config.Issuer = v
	}
	if v := os.Getenv("AUTHKIT_CLIENT_ID"); v != "" {
		config.ClientID = v
	}
	if v := os.Getenv("AUTHKIT_CLIENT_SECRET"); v != "" {
		config.ClientSecret = oauth.NewRedactedSecret(v)
	}
	if v := os.Getenv("AUTHKIT_AUTH_METHOD"); v != "" {
		config.AuthMethod = v
	}
	if v := os.Getenv("AUTHKIT_SIGNING_KEY_PATH"); v != "" {
		config.SigningKeyPath = v
	}
	if v := os.Getenv("AUTHKIT_REDIRECT_URI"); v != "" {
		config.RedirectURI = v
	}
	if v := os.Getenv("AUTHKIT_SCOPE"); v != "" {
		config.Scope = v
	}
	if v := os.Getenv("AUTHKIT_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
}

// Validate checks method and credential consistency. Issuer and client ID are
// checked by the commands that need them, so inspection commands work on an
// empty config.
func (c *Config) Validate() error {
	switch c.AuthMethod {
	case "", "none":
	case "client_secret_basic", "client_secret_post", "client_secret_jwt":
		if c.ClientSecret.IsEmpty() {
			return fmt.Errorf("auth method %s requires a client secret", c.AuthMethod)
		}
	case "private_key_jwt":
		if c.SigningKeyPath == "" {
			return fmt.Errorf("auth method private_key_jwt requires signing_key_path")
		}
	default:
		return fmt.Errorf("unknown auth method %q", c.AuthMethod)
	}
	return nil
}

package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"authkit/internal/config"
	"authkit/pkg/logging"
	"authkit/pkg/oauth"
)

// Exit codes for CLI commands.
// These follow common conventions so scripts can distinguish failure modes.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

var (
	configPath string
	logLevel   string

	// cfg is loaded once before any subcommand runs.
	cfg config.Config
)

// rootCmd represents the base command for the authkit application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "authkit",
	Short: "OAuth 2.0 and OpenID Connect client toolbox",
	Long: `authkit drives OAuth 2.0 and OpenID Connect flows from the command line:
interactive browser login with PKCE, device authorization for headless
machines, direct token requests, and JWT inspection and verification.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath == "" {
			configPath, err = config.DefaultPath()
			if err != nil {
				return err
			}
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles
// subcommands and flags. This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "authkit version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var authErr *oauth.AuthorizationError
	if errors.As(err, &authErr) {
		return ExitCodeAuthFailed
	}

	var stateErr *oauth.StateMismatchError
	if errors.As(err, &stateErr) {
		return ExitCodeAuthFailed
	}

	var nonceErr *oauth.NonceMismatchError
	if errors.As(err, &nonceErr) {
		return ExitCodeAuthFailed
	}

	var timeoutErr *oauth.TimeoutError
	if errors.As(err, &timeoutErr) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config directory (default is $HOME/.config/authkit)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "minimum log level: debug, info, warn, error")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newDeviceCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newVersionCmd())
}

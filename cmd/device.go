package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"authkit/pkg/oauth"
)

// newDeviceCmd creates the device authorization flow command.
func newDeviceCmd() *cobra.Command {
	var (
		scope     string
		showToken bool
	)

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Log in using the device authorization flow",
		Long: `Device runs the device authorization flow for machines without a browser:
it requests a user code, shows the verification URL, and polls the token
endpoint until the user completes authorization on another device.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := requireIssuerAndClient(cfg); err != nil {
				return err
			}
			if scope == "" {
				scope = cfg.Scope
			}

			metadata, err := discoverMetadata(ctx, cfg)
			if err != nil {
				return err
			}
			if metadata.DeviceAuthorizationEndpoint == "" {
				return fmt.Errorf("server %s does not advertise a device authorization endpoint", cfg.Issuer)
			}

			tokenClient := oauth.NewTokenClient()
			da, err := tokenClient.RequestDeviceAuthorization(ctx, metadata.DeviceAuthorizationEndpoint, cfg.ClientID, scope)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "To authorize this device, visit:\n\n  %s\n\nand enter the code: %s\n\n", da.VerificationURI, da.UserCode)
			if da.VerificationURIComplete != "" {
				fmt.Fprintf(os.Stderr, "Or open directly:\n\n  %s\n\n", da.VerificationURIComplete)
			}

			auth, err := resolveClientAuth(cfg)
			if err != nil {
				return err
			}

			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			spin.Suffix = " Waiting for authorization..."
			spin.Start()
			token, err := tokenClient.PollDeviceToken(ctx, metadata.TokenEndpoint, cfg.ClientID, da, auth)
			spin.Stop()
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stderr, "Device authorized.")
			printToken(token, showToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "requested scope (overrides config)")
	cmd.Flags().BoolVar(&showToken, "show-token", false, "print the full access token")

	return cmd
}

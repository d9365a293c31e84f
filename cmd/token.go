package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"authkit/pkg/oauth"
)

// newTokenCmd creates the non-interactive token request command.
func newTokenCmd() *cobra.Command {
	var (
		grantType    string
		refreshToken string
		scope        string
		showToken    bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Request a token without user interaction",
		Long: `Token sends a single request to the token endpoint using a
non-interactive grant: client_credentials for the client's own token, or
refresh_token to trade a refresh token for a fresh access token.`,
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

			auth, err := resolveClientAuth(cfg)
			if err != nil {
				return err
			}

			var grant oauth.Grant
			switch grantType {
			case "client_credentials":
				grant = oauth.ClientCredentialsGrant{}
			case "refresh_token":
				if refreshToken == "" {
					return fmt.Errorf("--refresh-token is required for the refresh_token grant")
				}
				grant = oauth.RefreshTokenGrant{RefreshToken: refreshToken}
			default:
				return fmt.Errorf("unsupported grant type %q (use client_credentials or refresh_token)", grantType)
			}

			opts := []oauth.ExchangeOption{}
			if scope != "" {
				opts = append(opts, oauth.WithScope(scope))
			}

			tokenClient := oauth.NewTokenClient()
			token, err := tokenClient.Exchange(ctx, metadata.TokenEndpoint, cfg.ClientID, grant, auth, opts...)
			if err != nil {
				return err
			}

			printToken(token, showToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&grantType, "grant-type", "client_credentials", "grant type: client_credentials or refresh_token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token for the refresh_token grant")
	cmd.Flags().StringVar(&scope, "scope", "", "requested scope (overrides config)")
	cmd.Flags().BoolVar(&showToken, "show-token", false, "print the full access token")

	return cmd
}

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"authkit/internal/flow"
	"authkit/pkg/oauth"
)

// newLoginCmd creates the interactive browser login command.
func newLoginCmd() *cobra.Command {
	var (
		responseType string
		responseMode string
		scope        string
		noBrowser    bool
		noPKCE       bool
		showToken    bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in interactively through the browser",
		Long: `Login runs an interactive authorization flow: it opens the browser at the
server's authorization endpoint, receives the response on a loopback
redirect, and (for code flows) exchanges the code at the token endpoint.

PKCE is used for code flows unless --no-pkce is given. OpenID Connect is
detected from the response type and scope; OIDC requests carry a nonce that
is checked against any returned ID token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := requireIssuerAndClient(cfg); err != nil {
				return err
			}
			if scope == "" {
				scope = cfg.Scope
			}
			if responseMode == "" {
				responseMode = cfg.ResponseMode
			}

			metadata, err := discoverMetadata(ctx, cfg)
			if err != nil {
				return err
			}

			opts := []flow.AuthorizerOption{}
			if noBrowser {
				opts = append(opts, flow.WithUserAgent(&flow.PrintAgent{Out: os.Stderr}))
			}
			authorizer := flow.NewAuthorizer(opts...)

			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			spin.Suffix = " Waiting for authorization in the browser..."
			spin.Start()

			result, err := authorizer.Authorize(ctx, flow.Request{
				AuthorizationEndpoint: metadata.AuthorizationEndpoint,
				ClientID:              cfg.ClientID,
				RedirectURI:           cfg.RedirectURI,
				ResponseType:          responseType,
				Scope:                 scope,
				ResponseMode:          responseMode,
				DisablePKCE:           noPKCE,
			})
			spin.Stop()
			if err != nil {
				return err
			}

			// Implicit and hybrid responses can carry tokens directly.
			if result.Code == "" {
				if result.AccessToken == "" && result.IDToken == "" {
					return &oauth.ProtocolError{Reason: "authorization response carried neither code nor token"}
				}
				token := &oauth.Token{
					AccessToken: result.AccessToken,
					TokenType:   result.TokenType,
					IDToken:     result.IDToken,
					ExpiresIn:   result.ExpiresIn,
					ExpiresAt:   result.ExpiresAt,
				}
				printToken(token, showToken)
				return nil
			}

			auth, err := resolveClientAuth(cfg)
			if err != nil {
				return err
			}

			tokenClient := oauth.NewTokenClient()
			exchangeOpts := []oauth.ExchangeOption{}
			if result.Nonce != "" {
				exchangeOpts = append(exchangeOpts, oauth.WithExpectedNonce(result.Nonce))
			}

			token, err := tokenClient.Exchange(ctx, metadata.TokenEndpoint, cfg.ClientID,
				oauth.AuthorizationCodeGrant{
					Code:         result.Code,
					RedirectURI:  result.RedirectURI,
					CodeVerifier: result.CodeVerifier,
				},
				auth, exchangeOpts...)
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stderr, "Login successful.")
			printToken(token, showToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&responseType, "response-type", "code", "authorization response type (code, token, id_token, \"code id_token\", ...)")
	cmd.Flags().StringVar(&responseMode, "response-mode", "", "authorization response mode (query, fragment, form_post)")
	cmd.Flags().StringVar(&scope, "scope", "", "requested scope (overrides config)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	cmd.Flags().BoolVar(&noPKCE, "no-pkce", false, "disable PKCE for code flows")
	cmd.Flags().BoolVar(&showToken, "show-token", false, "print the full access token")

	return cmd
}

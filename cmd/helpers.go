package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"authkit/internal/config"
	"authkit/pkg/jwt"
	"authkit/pkg/oauth"
)

// resolveClientAuth maps the configured auth method to a token endpoint
// authenticator. Secrets are revealed only inside the authenticator, at the
// point the request is built.
func resolveClientAuth(cfg config.Config) (oauth.ClientAuth, error) {
	switch cfg.AuthMethod {
	case "", "none":
		return oauth.AuthNone{}, nil
	case "client_secret_basic":
		return oauth.AuthSecretBasic{Secret: cfg.ClientSecret}, nil
	case "client_secret_post":
		return oauth.AuthSecretPost{Secret: cfg.ClientSecret}, nil
	case "client_secret_jwt":
		return oauth.AuthSecretJWT{Secret: cfg.ClientSecret}, nil
	case "private_key_jwt":
		cert, err := jwt.LoadSigningCertificate(cfg.SigningKeyPath)
		if err != nil {
			return nil, err
		}
		return oauth.AuthPrivateKeyJWT{Certificate: cert}, nil
	default:
		return nil, fmt.Errorf("unknown auth method %q", cfg.AuthMethod)
	}
}

// requireIssuerAndClient checks the configuration fields every flow command
// needs.
func requireIssuerAndClient(cfg config.Config) error {
	if cfg.Issuer == "" {
		return fmt.Errorf("issuer is not configured (set issuer in config.yaml or AUTHKIT_ISSUER)")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is not configured (set client_id in config.yaml or AUTHKIT_CLIENT_ID)")
	}
	return nil
}

// discoverMetadata resolves the server endpoints from the configured issuer.
func discoverMetadata(ctx context.Context, cfg config.Config) (*oauth.Metadata, error) {
	client := oauth.NewClient()
	return client.DiscoverMetadata(ctx, cfg.Issuer)
}

// printToken renders a token endpoint response as a table. Token values are
// truncated; the full access token goes to stdout only with --show-token.
func printToken(token *oauth.Token, showToken bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})

	access := truncateToken(token.AccessToken)
	if showToken {
		access = token.AccessToken
	}
	t.AppendRow(table.Row{"access_token", access})
	if token.TokenType != "" {
		t.AppendRow(table.Row{"token_type", token.TokenType})
	}
	if token.Scope != "" {
		t.AppendRow(table.Row{"scope", token.Scope})
	}
	if token.ExpiresIn > 0 {
		t.AppendRow(table.Row{"expires_in", fmt.Sprintf("%ds", token.ExpiresIn)})
		t.AppendRow(table.Row{"expires_at", token.ExpiresAt.Format(time.RFC3339)})
	}
	if token.RefreshToken != "" {
		t.AppendRow(table.Row{"refresh_token", truncateToken(token.RefreshToken)})
	}
	if token.IDToken != "" {
		t.AppendRow(table.Row{"id_token", truncateToken(token.IDToken)})
	}

	t.Render()
}

// truncateToken shortens a token for display without revealing it.
func truncateToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:8] + "..." + fmt.Sprintf("(%d chars)", len(token))
}

package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is the default margin when checking token expiry.
// This accounts for clock skew and network latency.
const DefaultExpiryMargin = 30 * time.Second

// Protocol identifies which protocol family an authorization request uses.
type Protocol string

const (
	// ProtocolOAuth is a plain OAuth 2.0 authorization request.
	ProtocolOAuth Protocol = "OAUTH"
	// ProtocolOIDC is an OpenID Connect request: the response_type contains
	// id_token, or it is "code" with "openid" in scope.
	ProtocolOIDC Protocol = "OIDC"
)

// Response modes for the authorization response (OAuth 2.0 Multiple Response
// Type Encoding Practices / OAuth 2.0 Form Post Response Mode).
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// Token represents a token endpoint response with derived metadata.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OIDC ID token (if issued).
	IDToken string `json:"id_token,omitempty"`

	// ExpiresIn is the token lifetime in seconds (from the response).
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the expiration timestamp derived from ExpiresIn at the
	// moment the response was received.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`
}

// IsExpired checks if the token has expired, allowing the default margin.
func (t *Token) IsExpired() bool {
	return t.IsExpiredWithMargin(DefaultExpiryMargin)
}

// IsExpiredWithMargin checks if the token has expired or will expire within
// the margin. Tokens without an expiry never expire.
func (t *Token) IsExpiredWithMargin(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// SetExpiresAtFromExpiresIn calculates and sets ExpiresAt from ExpiresIn.
func (t *Token) SetExpiresAtFromExpiresIn() {
	if t.ExpiresIn > 0 && t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token converts the Token to an oauth2.Token for compatibility with
// golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}

// AuthorizationResult is the validated outcome of an authorization endpoint
// round trip. It is built immutably at the end of response parsing; the
// state parameter is checked during validation and deliberately not carried
// on the result.
type AuthorizationResult struct {
	// Code is the authorization code (code and hybrid flows).
	Code string

	// AccessToken is an access token returned directly (implicit and
	// hybrid flows). Kept distinct from IDToken.
	AccessToken string

	// IDToken is the OIDC ID token returned directly (implicit and hybrid
	// flows). Kept distinct from AccessToken.
	IDToken string

	// TokenType accompanies AccessToken when present.
	TokenType string

	// Nonce is the request nonce, attached for OIDC flows so the caller
	// can validate tokens obtained in a later exchange.
	Nonce string

	// ClientID, CodeVerifier and RedirectURI are attached for code grants;
	// the subsequent token exchange needs them.
	ClientID     string
	CodeVerifier string
	RedirectURI  string

	// ExpiresIn and ExpiresAt annotate directly returned tokens.
	ExpiresIn int
	ExpiresAt time.Time

	// Params holds every parameter of the parsed response except state.
	Params map[string]string
}

// Metadata represents OAuth 2.0 Authorization Server Metadata as defined in
// RFC 8414, which is a superset of the OIDC discovery document.
type Metadata struct {
	// Issuer is the authorization server's issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// DeviceAuthorizationEndpoint is the URL of the RFC 8628 device
	// authorization endpoint.
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint,omitempty"`

	// UserinfoEndpoint is the URL of the userinfo endpoint (OIDC).
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// JwksURI is the URL of the JSON Web Key Set.
	JwksURI string `json:"jwks_uri,omitempty"`

	// ScopesSupported lists the OAuth 2.0 scope values supported.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ResponseTypesSupported lists the response_type values supported.
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`

	// GrantTypesSupported lists the grant types supported.
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// TokenEndpointAuthMethodsSupported lists the client authentication methods.
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods.
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsPKCE returns true if the server supports S256 PKCE.
func (m *Metadata) SupportsPKCE() bool {
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == ChallengeMethodS256 {
			return true
		}
	}
	// If not specified, assume S256 is supported (OAuth 2.1 requirement).
	return len(m.CodeChallengeMethodsSupported) == 0
}

// DeviceAuthorization is the verbatim response of a device authorization
// endpoint (RFC 8628 §3.2).
type DeviceAuthorization struct {
	// DeviceCode is the long-lived code the client polls the token
	// endpoint with.
	DeviceCode string `json:"device_code"`

	// UserCode is the short code the user enters at the verification URI.
	UserCode string `json:"user_code"`

	// VerificationURI is where the user completes the authorization.
	VerificationURI string `json:"verification_uri"`

	// VerificationURIComplete embeds the user code, when supported.
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`

	// ExpiresIn is the lifetime of the codes in seconds.
	ExpiresIn int `json:"expires_in"`

	// Interval is the minimum polling interval in seconds.
	Interval int `json:"interval,omitempty"`

	// Message is an optional display message some servers return.
	Message string `json:"message,omitempty"`
}

// PollInterval returns the polling interval to honor, defaulting to the
// RFC 8628 fallback of 5 seconds.
func (d *DeviceAuthorization) PollInterval() time.Duration {
	if d.Interval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(d.Interval) * time.Second
}

// DetectProtocol classifies an authorization request as OIDC or plain OAuth.
// The request is OIDC iff the response_type contains "id_token", or the
// response_type is exactly "code" and the scope contains "openid".
func DetectProtocol(responseType, scope string) Protocol {
	for _, part := range strings.Fields(responseType) {
		if part == "id_token" {
			return ProtocolOIDC
		}
	}
	if responseType == "code" && containsScope(scope, "openid") {
		return ProtocolOIDC
	}
	return ProtocolOAuth
}

// containsScope reports whether the space-separated scope string contains
// the given scope value.
func containsScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

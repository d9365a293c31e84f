package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authkit/pkg/jwt"
)

// deviceGrantType is the RFC 8628 grant_type value for device code exchange.
const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// Grant is one of the grant types the token endpoint accepts. Each
// implementation contributes its own form parameters.
type Grant interface {
	grantParams(form url.Values)
}

// AuthorizationCodeGrant redeems an authorization code, carrying the PKCE
// verifier when the request used one.
type AuthorizationCodeGrant struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

func (g AuthorizationCodeGrant) grantParams(form url.Values) {
	form.Set("grant_type", "authorization_code")
	form.Set("code", g.Code)
	if g.RedirectURI != "" {
		form.Set("redirect_uri", g.RedirectURI)
	}
	if g.CodeVerifier != "" {
		form.Set("code_verifier", g.CodeVerifier)
	}
}

// ClientCredentialsGrant requests a token for the client itself.
type ClientCredentialsGrant struct{}

func (g ClientCredentialsGrant) grantParams(form url.Values) {
	form.Set("grant_type", "client_credentials")
}

// DeviceGrant polls for the outcome of a device authorization.
type DeviceGrant struct {
	DeviceCode string
}

func (g DeviceGrant) grantParams(form url.Values) {
	form.Set("grant_type", deviceGrantType)
	form.Set("device_code", g.DeviceCode)
}

// RefreshTokenGrant trades a refresh token for a fresh access token.
type RefreshTokenGrant struct {
	RefreshToken string
}

func (g RefreshTokenGrant) grantParams(form url.Values) {
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", g.RefreshToken)
}

// ClientAuth is one of the client authentication methods for the token
// endpoint. Authentication happens before the request is built: methods
// contribute form fields or headers, and the client_id always travels in the
// body regardless of method.
type ClientAuth interface {
	authenticate(header http.Header, form url.Values, tokenEndpoint string) error
}

// AuthNone is a public client: no credential beyond the client_id.
type AuthNone struct{}

func (AuthNone) authenticate(http.Header, url.Values, string) error { return nil }

// AuthSecretBasic sends the client secret in an HTTP Basic Authorization
// header (client_secret_basic).
type AuthSecretBasic struct {
	Secret RedactedSecret
}

func (a AuthSecretBasic) authenticate(header http.Header, form url.Values, _ string) error {
	clientID := form.Get("client_id")
	credentials := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + a.Secret.Reveal()))
	header.Set("Authorization", "Basic "+credentials)
	return nil
}

// AuthSecretPost sends the client secret as a client_secret form field
// (client_secret_post).
type AuthSecretPost struct {
	Secret RedactedSecret
}

func (a AuthSecretPost) authenticate(_ http.Header, form url.Values, _ string) error {
	form.Set("client_secret", a.Secret.Reveal())
	return nil
}

// AuthSecretJWT signs a client assertion with the shared secret
// (client_secret_jwt).
type AuthSecretJWT struct {
	Secret RedactedSecret
}

func (a AuthSecretJWT) authenticate(_ http.Header, form url.Values, tokenEndpoint string) error {
	assertion, err := jwt.BuildAssertion(jwt.AssertionParams{
		ClientID: form.Get("client_id"),
		Audience: tokenEndpoint,
		Secret:   a.Secret.Reveal(),
	})
	if err != nil {
		return fmt.Errorf("failed to build client assertion: %w", err)
	}
	form.Set("client_assertion_type", assertion.Type)
	form.Set("client_assertion", assertion.Assertion)
	return nil
}

// AuthPrivateKeyJWT signs a client assertion with an RSA key
// (private_key_jwt).
type AuthPrivateKeyJWT struct {
	Certificate *jwt.SigningCertificate
}

func (a AuthPrivateKeyJWT) authenticate(_ http.Header, form url.Values, tokenEndpoint string) error {
	assertion, err := jwt.BuildAssertion(jwt.AssertionParams{
		ClientID:    form.Get("client_id"),
		Audience:    tokenEndpoint,
		Certificate: a.Certificate,
	})
	if err != nil {
		return fmt.Errorf("failed to build client assertion: %w", err)
	}
	form.Set("client_assertion_type", assertion.Type)
	form.Set("client_assertion", assertion.Assertion)
	return nil
}

// TokenClient performs token endpoint requests. It never retries; polling
// loops and backoff belong to the caller.
type TokenClient struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// TokenClientOption configures a TokenClient.
type TokenClientOption func(*TokenClient)

// WithTokenHTTPClient sets a custom HTTP client.
func WithTokenHTTPClient(httpClient *http.Client) TokenClientOption {
	return func(c *TokenClient) {
		c.httpClient = httpClient
	}
}

// WithTokenLogger sets a custom logger.
func WithTokenLogger(logger *slog.Logger) TokenClientOption {
	return func(c *TokenClient) {
		c.logger = logger
	}
}

// NewTokenClient creates a TokenClient.
func NewTokenClient(opts ...TokenClientOption) *TokenClient {
	c := &TokenClient{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// exchangeConfig holds per-call request shaping.
type exchangeConfig struct {
	expectedNonce string
	headers       map[string]string
	scope         string
}

// ExchangeOption shapes a single token request.
type ExchangeOption func(*exchangeConfig)

// WithExpectedNonce checks the nonce claim of a returned id_token against the
// given value; a mismatch fails the exchange with *NonceMismatchError.
func WithExpectedNonce(nonce string) ExchangeOption {
	return func(c *exchangeConfig) {
		c.expectedNonce = nonce
	}
}

// WithHeaders adds or overrides request headers, including Content-Type.
func WithHeaders(headers map[string]string) ExchangeOption {
	return func(c *exchangeConfig) {
		c.headers = headers
	}
}

// WithScope adds a scope parameter to the request body.
func WithScope(scope string) ExchangeOption {
	return func(c *exchangeConfig) {
		c.scope = scope
	}
}

// Exchange sends a single token request and returns the parsed token with
// ExpiresAt derived from expires_in.
//
// OAuth error responses surface as *AuthorizationError with the server's
// error code, description and URI. Transport failures are returned as-is.
// An id_token nonce mismatch (when WithExpectedNonce is used) fails with
// *NonceMismatchError even when the HTTP exchange succeeded.
func (c *TokenClient) Exchange(ctx context.Context, tokenEndpoint, clientID string, grant Grant, auth ClientAuth, opts ...ExchangeOption) (*Token, error) {
	var cfg exchangeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if auth == nil {
		auth = AuthNone{}
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	grant.grantParams(form)
	if cfg.scope != "" {
		form.Set("scope", cfg.scope)
	}

	// Authenticate into the form and headers first so the request is built
	// with its final body and a correct Content-Length.
	authHeader := make(http.Header)
	if err := auth.authenticate(authHeader, form, tokenEndpoint); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	for k, vs := range authHeader {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("Sending token request",
		"token_endpoint", tokenEndpoint,
		"grant_type", form.Get("grant_type"),
		"client_id", clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	token.SetExpiresAtFromExpiresIn()

	if cfg.expectedNonce != "" && token.IDToken != "" {
		if err := checkNonce(token.IDToken, cfg.expectedNonce); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Token request succeeded",
		"token_type", token.TokenType,
		"has_refresh_token", token.RefreshToken != "",
		"has_id_token", token.IDToken != "",
		"expires_in", token.ExpiresIn)

	return &token, nil
}

// checkNonce decodes the id_token (without signature verification) and
// compares its nonce claim against the expected value.
func checkNonce(idToken, expected string) error {
	decoded, err := jwt.Decode(idToken)
	if err != nil {
		return fmt.Errorf("failed to decode id_token: %w", err)
	}
	if nonce := decoded.Nonce(); nonce != expected {
		return &NonceMismatchError{Expected: expected, Received: nonce}
	}
	return nil
}

// parseErrorResponse maps a non-200 token response to *AuthorizationError
// when the body carries the standard error JSON, or to a plain error
// otherwise.
func parseErrorResponse(status int, body []byte) error {
	var oauthErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`
	}
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		return &AuthorizationError{
			Code:        oauthErr.Error,
			Description: oauthErr.ErrorDescription,
			URI:         oauthErr.ErrorURI,
		}
	}
	return fmt.Errorf("token request failed with status %d", status)
}

// RequestDeviceAuthorization starts an RFC 8628 device flow: a single POST to
// the device authorization endpoint with the client_id and optional scope.
// The response is returned verbatim.
func (c *TokenClient) RequestDeviceAuthorization(ctx context.Context, deviceEndpoint, clientID, scope string) (*DeviceAuthorization, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	if scope != "" {
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deviceEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read device authorization response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	var da DeviceAuthorization
	if err := json.Unmarshal(body, &da); err != nil {
		return nil, fmt.Errorf("failed to parse device authorization response: %w", err)
	}

	c.logger.Debug("Device authorization started",
		"verification_uri", da.VerificationURI,
		"expires_in", da.ExpiresIn,
		"interval", da.Interval)

	return &da, nil
}

// PollDeviceToken polls the token endpoint with the device grant until the
// user completes authorization, the codes expire, or the context is canceled.
// It honors the server interval, stretches it on slow_down, and keeps polling
// through authorization_pending.
func (c *TokenClient) PollDeviceToken(ctx context.Context, tokenEndpoint, clientID string, da *DeviceAuthorization, auth ClientAuth, opts ...ExchangeOption) (*Token, error) {
	interval := da.PollInterval()

	deadline := time.Now().Add(time.Duration(da.ExpiresIn) * time.Second)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		if da.ExpiresIn > 0 && time.Now().After(deadline) {
			return nil, &TimeoutError{Operation: "device authorization"}
		}

		token, err := c.Exchange(ctx, tokenEndpoint, clientID, DeviceGrant{DeviceCode: da.DeviceCode}, auth, opts...)
		if err == nil {
			return token, nil
		}

		authErr, ok := err.(*AuthorizationError)
		if !ok {
			return nil, err
		}
		switch authErr.Code {
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
			c.logger.Debug("Server requested slower polling", "interval", interval)
			continue
		default:
			return nil, authErr
		}
	}
}

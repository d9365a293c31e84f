// Package flow orchestrates interactive authorization flows: it assembles
// the authorization request, runs the loopback receiver, drives the user
// agent, and validates the response before handing a result to the caller.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"authkit/pkg/jwt"
	"authkit/pkg/oauth"
)

const (
	// receiverGrace is how long the flow waits after starting the loopback
	// receiver before sending the user agent off, so the redirect cannot
	// arrive at an unbound port.
	receiverGrace = 500 * time.Millisecond

	// DefaultWaitTimeout bounds interactive flows where a person completes
	// the authorization in a browser.
	DefaultWaitTimeout = 5 * time.Minute

	// DefaultFormPostTimeout bounds form_post flows, where the server posts
	// the response itself and no human is in the loop after navigation.
	DefaultFormPostTimeout = 10 * time.Second
)

// Param is a single ordered request parameter. Custom parameters keep their
// caller-supplied order in the authorization URL.
type Param struct {
	Key   string
	Value string
}

// reservedParams are assembled by the flow itself and never appended as
// custom parameters. Caller-supplied values for state, nonce and the PKCE
// pair override generation instead (see extractOverrides); code_verifier in
// particular is a secret and must never appear in the authorization URL.
var reservedParams = map[string]bool{
	"response_type":         true,
	"client_id":             true,
	"state":                 true,
	"redirect_uri":          true,
	"scope":                 true,
	"nonce":                 true,
	"code_challenge":        true,
	"code_challenge_method": true,
	"code_verifier":         true,
	"response_mode":         true,
}

// paramOverrides are the protocol parameters a caller may pin through
// CustomParams instead of having the flow generate them.
type paramOverrides struct {
	state           string
	nonce           string
	codeChallenge   string
	challengeMethod string
	codeVerifier    string
}

// extractOverrides scans the custom parameters for values that replace the
// flow's own generation.
func extractOverrides(params []Param) paramOverrides {
	var o paramOverrides
	for _, p := range params {
		switch p.Key {
		case "state":
			o.state = p.Value
		case "nonce":
			o.nonce = p.Value
		case "code_challenge":
			o.codeChallenge = p.Value
		case "code_challenge_method":
			o.challengeMethod = p.Value
		case "code_verifier":
			o.codeVerifier = p.Value
		}
	}
	return o
}

// pkceFromOverrides builds the PKCE pair from caller-supplied values. A
// missing challenge is derived from the verifier; the method defaults to
// S256.
func pkceFromOverrides(o paramOverrides) *oauth.PKCEChallenge {
	challenge := o.codeChallenge
	if challenge == "" {
		challenge = oauth.S256Challenge(o.codeVerifier)
	}
	method := o.challengeMethod
	if method == "" {
		method = oauth.ChallengeMethodS256
	}
	return &oauth.PKCEChallenge{
		CodeVerifier:        o.codeVerifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}
}

// Request describes one authorization round trip.
type Request struct {
	// AuthorizationEndpoint is the server's authorization endpoint URL.
	AuthorizationEndpoint string

	// ClientID identifies the client.
	ClientID string

	// RedirectURI is the loopback redirect URI the receiver binds to.
	RedirectURI string

	// ResponseType is e.g. "code", "token", "id_token", "code id_token".
	ResponseType string

	// Scope is the space-separated requested scope.
	Scope string

	// ResponseMode optionally requests a non-default response binding.
	// "form_post" switches the receiver to the POST binding.
	ResponseMode string

	// DisablePKCE turns off PKCE for code flows. PKCE is on by default
	// whenever the response type requests a code.
	DisablePKCE bool

	// CustomParams are appended to the request in the given order. Reserved
	// parameter names are ignored.
	CustomParams []Param
}

// Authorizer runs authorization flows.
type Authorizer struct {
	logger          *slog.Logger
	agent           UserAgent
	waitTimeout     time.Duration
	formPostTimeout time.Duration
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) AuthorizerOption {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

// WithUserAgent replaces the default browser agent.
func WithUserAgent(agent UserAgent) AuthorizerOption {
	return func(a *Authorizer) {
		a.agent = agent
	}
}

// WithWaitTimeout bounds how long redirect flows wait for the callback.
func WithWaitTimeout(d time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		a.waitTimeout = d
	}
}

// WithFormPostTimeout bounds how long form_post flows wait for the POST.
func WithFormPostTimeout(d time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		a.formPostTimeout = d
	}
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		logger:          slog.Default(),
		waitTimeout:     DefaultWaitTimeout,
		formPostTimeout: DefaultFormPostTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.agent == nil {
		a.agent = NewBrowserAgent(a.logger)
	}
	return a
}

// Authorize runs one authorization round trip: generate state (and, per
// protocol, nonce and PKCE), start the receiver, send the user agent, wait
// for the response, and validate it.
//
// State and nonce mismatches always fail the flow; they are never reduced to
// warnings. The state parameter is consumed during validation and does not
// appear on the result.
func (a *Authorizer) Authorize(ctx context.Context, req Request) (*oauth.AuthorizationResult, error) {
	if req.AuthorizationEndpoint == "" {
		return nil, fmt.Errorf("authorization endpoint is required")
	}
	if req.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if req.ResponseType == "" {
		req.ResponseType = "code"
	}

	protocol := oauth.DetectProtocol(req.ResponseType, req.Scope)
	if protocol == oauth.ProtocolOIDC && !hasScope(req.Scope, "openid") {
		a.logger.Warn("OIDC request scope is missing openid, appending it",
			"scope", req.Scope)
		req.Scope = strings.TrimSpace(req.Scope + " openid")
	}

	overrides := extractOverrides(req.CustomParams)

	state := overrides.state
	if state == "" {
		var err error
		state, err = oauth.GenerateState()
		if err != nil {
			return nil, err
		}
	}

	nonce := overrides.nonce
	if nonce == "" && protocol == oauth.ProtocolOIDC {
		var err error
		nonce, err = oauth.GenerateNonce()
		if err != nil {
			return nil, err
		}
	}

	var pkce *oauth.PKCEChallenge
	switch {
	case overrides.codeChallenge != "" || overrides.codeVerifier != "":
		pkce = pkceFromOverrides(overrides)
	case a.wantsCode(req.ResponseType) && !req.DisablePKCE:
		var err error
		pkce, err = oauth.GeneratePKCE()
		if err != nil {
			return nil, err
		}
	}

	authURL := buildAuthorizationURL(req, state, nonce, pkce)

	a.logger.Debug("Starting authorization flow",
		"protocol", string(protocol),
		"response_type", req.ResponseType,
		"response_mode", req.ResponseMode,
		"pkce", pkce != nil)

	server, err := NewCallbackServer(req.RedirectURI, a.logger)
	if err != nil {
		return nil, err
	}
	if err := server.Start(); err != nil {
		return nil, err
	}
	defer server.Stop(ctx)

	// The receiver must be ready before the redirect can arrive.
	select {
	case <-time.After(receiverGrace):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := a.agent.Open(ctx, authURL); err != nil {
		return nil, err
	}

	timeout := a.waitTimeout
	if req.ResponseMode == oauth.ResponseModeFormPost {
		timeout = a.formPostTimeout
	}

	outcome, err := server.Wait(ctx, timeout)
	if err != nil {
		return nil, err
	}

	params, err := parseOutcome(outcome)
	if err != nil {
		return nil, err
	}

	return buildResult(req, params, state, nonce, pkce)
}

// hasScope reports whether the space-separated scope contains the given
// value.
func hasScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

// wantsCode reports whether the response type requests an authorization code.
func (a *Authorizer) wantsCode(responseType string) bool {
	for _, part := range strings.Fields(responseType) {
		if part == "code" {
			return true
		}
	}
	return false
}

// buildAuthorizationURL assembles the authorization request URL. Parameter
// order is fixed: response_type, client_id, state, then the optional standard
// parameters, then custom parameters in caller order, then response_mode.
// The query is joined by hand because url.Values sorts keys.
func buildAuthorizationURL(req Request, state, nonce string, pkce *oauth.PKCEChallenge) string {
	var pairs []string
	add := func(k, v string) {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}

	add("response_type", req.ResponseType)
	add("client_id", req.ClientID)
	add("state", state)
	if req.RedirectURI != "" {
		add("redirect_uri", req.RedirectURI)
	}
	if req.Scope != "" {
		add("scope", req.Scope)
	}
	if nonce != "" {
		add("nonce", nonce)
	}
	if pkce != nil {
		add("code_challenge", pkce.CodeChallenge)
		add("code_challenge_method", pkce.CodeChallengeMethod)
	}
	for _, p := range req.CustomParams {
		if reservedParams[p.Key] {
			continue
		}
		add(p.Key, p.Value)
	}
	if req.ResponseMode != "" {
		add("response_mode", req.ResponseMode)
	}

	separator := "?"
	if strings.Contains(req.AuthorizationEndpoint, "?") {
		separator = "&"
	}
	return req.AuthorizationEndpoint + separator + strings.Join(pairs, "&")
}

// parseOutcome extracts the response parameters from what the receiver
// observed. For redirects the priority is: query parameters carrying a code,
// then query parameters carrying an error, then the fragment; anything else
// is a *oauth.ProtocolError.
func parseOutcome(outcome *callbackOutcome) (map[string]string, error) {
	if outcome.form != nil {
		return flattenValues(outcome.form), nil
	}

	query := outcome.requestURL.Query()
	switch {
	case query.Get("code") != "" || query.Get("access_token") != "" || query.Get("id_token") != "":
		return flattenValues(query), nil
	case query.Get("error") != "":
		return flattenValues(query), nil
	}

	if fragment := outcome.requestURL.Fragment; fragment != "" {
		values, err := url.ParseQuery(fragment)
		if err != nil {
			return nil, &oauth.ProtocolError{Reason: "unparseable fragment in authorization response"}
		}
		return flattenValues(values), nil
	}

	return nil, &oauth.ProtocolError{Reason: "authorization response carries neither code, token, nor error"}
}

// flattenValues keeps the first value of each parameter.
func flattenValues(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return params
}

// buildResult validates the response parameters and assembles the immutable
// result. Validation order: state, server error, nonce.
func buildResult(req Request, params map[string]string, state, nonce string, pkce *oauth.PKCEChallenge) (*oauth.AuthorizationResult, error) {
	if received := params["state"]; received != state {
		return nil, &oauth.StateMismatchError{Expected: state, Received: received}
	}

	if errCode := params["error"]; errCode != "" {
		return nil, &oauth.AuthorizationError{
			Code:        errCode,
			Description: params["error_description"],
			URI:         params["error_uri"],
		}
	}

	if idToken := params["id_token"]; idToken != "" && nonce != "" {
		decoded, err := jwt.Decode(idToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decode id_token: %w", err)
		}
		if got := decoded.Nonce(); got != nonce {
			return nil, &oauth.NonceMismatchError{Expected: nonce, Received: got}
		}
	}

	result := &oauth.AuthorizationResult{
		Code:        params["code"],
		AccessToken: params["access_token"],
		IDToken:     params["id_token"],
		TokenType:   params["token_type"],
		Nonce:       nonce,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Params:      make(map[string]string, len(params)),
	}
	if pkce != nil {
		result.CodeVerifier = pkce.CodeVerifier
	}
	if expiresIn := params["expires_in"]; expiresIn != "" {
		if n, err := strconv.Atoi(expiresIn); err == nil && n > 0 {
			result.ExpiresIn = n
			result.ExpiresAt = time.Now().Add(time.Duration(n) * time.Second)
		}
	}
	for k, v := range params {
		if k == "state" {
			continue
		}
		result.Params[k] = v
	}

	return result, nil
}

package jwt

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/subtle"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"authkit/pkg/base64url"
)

// DefaultVerifierHTTPTimeout is the default timeout for discovery and JWKS
// fetches.
const DefaultVerifierHTTPTimeout = 30 * time.Second

// KeySetFetcher resolves an issuer to its published JSON Web Key Set.
// The default implementation fetches the OIDC discovery document and follows
// its jwks_uri; callers can inject a caching fetcher instead.
type KeySetFetcher func(ctx context.Context, issuer string) (*KeySet, error)

// Verifier verifies JWT signatures. The verification key comes from supplied
// material (certificate, public key, or shared secret) or, when none is
// supplied, from the issuer's OIDC discovery metadata.
type Verifier struct {
	httpClient *http.Client
	logger     *slog.Logger
	fetchKeys  KeySetFetcher
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithHTTPClient sets a custom HTTP client for discovery and JWKS fetches.
func WithHTTPClient(httpClient *http.Client) VerifierOption {
	return func(v *Verifier) {
		v.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithKeySetFetcher replaces the default discovery-based key set fetch.
func WithKeySetFetcher(fetch KeySetFetcher) VerifierOption {
	return func(v *Verifier) {
		v.fetchKeys = fetch
	}
}

// NewVerifier creates a Verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		httpClient: &http.Client{Timeout: DefaultVerifierHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.fetchKeys == nil {
		v.fetchKeys = v.discoverKeySet
	}
	return v
}

// verifyConfig holds the per-call key material.
type verifyConfig struct {
	certificate *x509.Certificate
	publicKey   crypto.PublicKey
	secret      string
}

// VerifyOption supplies key material for a single Verify call.
type VerifyOption func(*verifyConfig)

// WithCertificate verifies against the certificate's public key.
func WithCertificate(cert *x509.Certificate) VerifyOption {
	return func(c *verifyConfig) {
		c.certificate = cert
	}
}

// WithPublicKey verifies against the given RSA or ECDSA public key.
func WithPublicKey(key crypto.PublicKey) VerifyOption {
	return func(c *verifyConfig) {
		c.publicKey = key
	}
}

// WithSecret verifies an HMAC signature with the shared client secret.
func WithSecret(secret string) VerifyOption {
	return func(c *verifyConfig) {
		c.secret = secret
	}
}

// Verify checks the signature of a compact JWT.
//
// The result is false for a signature that does not verify; an error is
// returned only for structural problems (malformed token, unsupported
// algorithm, unresolvable key), never for a plain verification failure.
func (v *Verifier) Verify(ctx context.Context, token string, opts ...VerifyOption) (bool, error) {
	var cfg verifyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	decoded, err := Decode(token)
	if err != nil {
		return false, err
	}
	if decoded.Signature == "" {
		return false, &ValidationError{Reason: "token is unsigned"}
	}

	// HMAC path: double Base64 signature over the exact signing input,
	// compared in constant time.
	if cfg.secret != "" {
		expected := hmacSignature(cfg.secret, decoded.SigningInput())
		match := subtle.ConstantTimeCompare([]byte(expected), []byte(decoded.Signature)) == 1
		return match, nil
	}

	key, err := v.resolveKey(ctx, decoded, &cfg)
	if err != nil {
		return false, err
	}

	return verifyAsymmetric(decoded, key)
}

// resolveKey picks the verification key: supplied material wins, discovery
// metadata is the fallback.
func (v *Verifier) resolveKey(ctx context.Context, decoded *Decoded, cfg *verifyConfig) (crypto.PublicKey, error) {
	if cfg.certificate != nil {
		return cfg.certificate.PublicKey, nil
	}
	if cfg.publicKey != nil {
		return cfg.publicKey, nil
	}

	issuer := decoded.Issuer()
	if issuer == "" {
		return nil, &KeyResolutionError{Reason: "token has no iss claim"}
	}

	keySet, err := v.fetchKeys(ctx, issuer)
	if err != nil {
		return nil, &KeyResolutionError{Issuer: issuer, KeyID: decoded.KeyID(), Reason: err.Error()}
	}

	kid := decoded.KeyID()
	jwk := keySet.ByKID(kid)
	if jwk == nil {
		return nil, &KeyResolutionError{Issuer: issuer, KeyID: kid, Reason: "no key with matching kid in key set"}
	}

	key, err := jwk.PublicKey()
	if err != nil {
		return nil, &KeyResolutionError{Issuer: issuer, KeyID: kid, Reason: err.Error()}
	}
	return key, nil
}

// verifyAsymmetric dispatches on the alg header prefix: RS*/PS* need an RSA
// key (PKCS#1 v1.5 and PSS padding respectively), ES* an ECDSA key. The
// signing input is the literal first two segments of the original token.
func verifyAsymmetric(decoded *Decoded, key crypto.PublicKey) (bool, error) {
	alg := decoded.Algorithm()

	switch {
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		if _, ok := key.(*rsa.PublicKey); !ok {
			return false, fmt.Errorf("alg %s requires an RSA public key, got %T", alg, key)
		}
	case strings.HasPrefix(alg, "ES"):
		if _, ok := key.(*ecdsa.PublicKey); !ok {
			return false, fmt.Errorf("alg %s requires an ECDSA public key, got %T", alg, key)
		}
	default:
		return false, &UnsupportedAlgorithmError{Algorithm: alg}
	}

	method := jwtv5.GetSigningMethod(alg)
	if method == nil {
		return false, &UnsupportedAlgorithmError{Algorithm: alg}
	}

	sig, err := base64url.Decode(decoded.Signature)
	if err != nil {
		return false, &DecodeError{Segment: "signature", Err: err}
	}

	if err := method.Verify(decoded.SigningInput(), sig, key); err != nil {
		if errors.Is(err, jwtv5.ErrInvalidKeyType) || errors.Is(err, jwtv5.ErrInvalidKey) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// discoveryMetadata is the slice of the OIDC discovery document the verifier
// needs.
type discoveryMetadata struct {
	JwksURI string `json:"jwks_uri"`
}

// discoverKeySet fetches {issuer}/.well-known/openid-configuration and
// follows its jwks_uri.
func (v *Verifier) discoverKeySet(ctx context.Context, issuer string) (*KeySet, error) {
	wellKnown := normalizeIssuer(issuer) + "/.well-known/openid-configuration"

	var metadata discoveryMetadata
	if err := v.getJSON(ctx, wellKnown, &metadata); err != nil {
		return nil, fmt.Errorf("failed to fetch discovery metadata: %w", err)
	}
	if metadata.JwksURI == "" {
		return nil, errors.New("discovery metadata has no jwks_uri")
	}

	var keySet KeySet
	if err := v.getJSON(ctx, metadata.JwksURI, &keySet); err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}

	v.logger.Debug("Fetched key set from discovery metadata",
		"issuer", issuer,
		"jwks_uri", metadata.JwksURI,
		"keys", len(keySet.Keys))

	return &keySet, nil
}

func (v *Verifier) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// normalizeIssuer trims the trailing slash and defaults the scheme to https
// for bare hostnames.
func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSuffix(issuer, "/")
	if !strings.HasPrefix(issuer, "http://") && !strings.HasPrefix(issuer, "https://") {
		issuer = "https://" + issuer
	}
	return issuer
}

package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authkit/pkg/base64url"
)

// AssertionType is the fixed client_assertion_type URN for JWT bearer client
// authentication (RFC 7523 §2.2).
const AssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// assertionLifetime is the exp-iat window of a client assertion.
const assertionLifetime = 300 * time.Second

// AssertionParams describes a client assertion to build. Exactly one of
// Certificate (private_key_jwt) or Secret (client_secret_jwt) must be set.
type AssertionParams struct {
	// ClientID becomes both the iss and sub claims.
	ClientID string

	// Audience is the token endpoint URL the assertion is presented to.
	Audience string

	// JWTID is the jti claim; a fresh UUID is generated when empty.
	JWTID string

	// CustomClaims are merged into the payload after the standard claims
	// and may override them.
	CustomClaims map[string]any

	// Certificate selects RSA signing (RS256, PKCS#1 v1.5 / SHA-256).
	Certificate *SigningCertificate

	// Secret selects HMAC signing (HS256) over the shared client secret.
	Secret string
}

// ClientAssertion is a built and signed client assertion ready for a token
// request.
type ClientAssertion struct {
	// Assertion is the compact JWT.
	Assertion string

	// Type is always AssertionType.
	Type string

	// Header and Claims expose what was signed, for inspection.
	Header map[string]any
	Claims map[string]any
}

// BuildAssertion builds and signs a client-assertion JWT for JWT-based
// client authentication at the token endpoint.
func BuildAssertion(p AssertionParams) (*ClientAssertion, error) {
	if (p.Certificate == nil) == (p.Secret == "") {
		return nil, errors.New("exactly one of certificate or secret must be provided")
	}
	if p.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if p.Audience == "" {
		return nil, errors.New("audience is required")
	}

	jti := p.JWTID
	if jti == "" {
		jti = uuid.NewString()
	}

	now := time.Now().UTC()
	claims := map[string]any{
		"aud": p.Audience,
		"exp": now.Add(assertionLifetime).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"iss": p.ClientID,
		"sub": p.ClientID,
		"jti": jti,
	}
	for k, v := range p.CustomClaims {
		claims[k] = v
	}

	if p.Certificate != nil {
		return signRSA(p.Certificate, claims)
	}
	return signHMAC(p.Secret, claims)
}

// signRSA signs the assertion with RS256 via golang-jwt, adding the x5t
// thumbprint and optional kid when a certificate is present.
func signRSA(cert *SigningCertificate, claims map[string]any) (*ClientAssertion, error) {
	if cert.PrivateKey == nil {
		return nil, errors.New("signing certificate has no private key")
	}

	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims(claims))
	header := map[string]any{
		"alg": "RS256",
		"typ": "JWT",
	}
	if thumb := cert.Thumbprint(); thumb != "" {
		tok.Header["x5t"] = thumb
		header["x5t"] = thumb
	}
	if cert.KeyID != "" {
		tok.Header["kid"] = cert.KeyID
		header["kid"] = cert.KeyID
	}

	signed, err := tok.SignedString(cert.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &ClientAssertion{
		Assertion: signed,
		Type:      AssertionType,
		Header:    header,
		Claims:    claims,
	}, nil
}

// signHMAC signs the assertion with HMAC-SHA256 over the UTF-8 secret bytes.
//
// The signature is double Base64-encoded: the digest is standard
// Base64-encoded first and that text is then base64url-encoded. Existing
// deployments verify against this exact encoding, so it is preserved for
// wire compatibility.
func signHMAC(secret string, claims map[string]any) (*ClientAssertion, error) {
	header := map[string]any{
		"alg": "HS256",
		"typ": "JWT",
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}

	signingInput := base64url.Encode(headerJSON) + "." + base64url.Encode(claimsJSON)
	signature := hmacSignature(secret, signingInput)

	return &ClientAssertion{
		Assertion: signingInput + "." + signature,
		Type:      AssertionType,
		Header:    header,
		Claims:    claims,
	}, nil
}

// hmacSignature computes the double Base64-encoded HMAC-SHA256 signature
// over the signing input. Shared by assertion signing and verification.
func hmacSignature(secret, signingInput string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingInput))
	return base64url.EncodeString(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

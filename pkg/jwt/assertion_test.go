package jwt

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authkit/pkg/base64url"
)

func generateSigningCertificate(t *testing.T) *SigningCertificate {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &SigningCertificate{PrivateKey: key, Certificate: cert}
}

func TestBuildAssertionRSA(t *testing.T) {
	cert := generateSigningCertificate(t)

	assertion, err := BuildAssertion(AssertionParams{
		ClientID:    "my-client",
		Audience:    "https://auth.example.com/token",
		Certificate: cert,
	})
	require.NoError(t, err)

	assert.Equal(t, AssertionType, assertion.Type)

	decoded, err := Decode(assertion.Assertion)
	require.NoError(t, err)
	assert.Equal(t, "RS256", decoded.Algorithm())
	assert.Equal(t, "JWT", decoded.Header["typ"])
	assert.Equal(t, cert.Thumbprint(), decoded.Header["x5t"])

	assert.Equal(t, "my-client", decoded.StringClaim("iss"))
	assert.Equal(t, "my-client", decoded.StringClaim("sub"))
	assert.Equal(t, "https://auth.example.com/token", decoded.StringClaim("aud"))

	jti := decoded.StringClaim("jti")
	_, err = uuid.Parse(jti)
	assert.NoError(t, err, "jti should be a UUID")

	// exp is exactly 300 seconds after iat, and nbf equals iat.
	iat, ok := decoded.Claims["iat"].(float64)
	require.True(t, ok)
	exp, ok := decoded.Claims["exp"].(float64)
	require.True(t, ok)
	nbf, ok := decoded.Claims["nbf"].(float64)
	require.True(t, ok)
	assert.Equal(t, float64(300), exp-iat)
	assert.Equal(t, iat, nbf)

	// The signature verifies against the certificate's public key.
	sig, err := base64url.Decode(decoded.Signature)
	require.NoError(t, err)
	hashed := sha256.Sum256([]byte(decoded.SigningInput()))
	assert.NoError(t, rsa.VerifyPKCS1v15(&cert.PrivateKey.PublicKey, crypto.SHA256, hashed[:], sig))
}

func TestBuildAssertionHMAC(t *testing.T) {
	assertion, err := BuildAssertion(AssertionParams{
		ClientID: "my-client",
		Audience: "https://auth.example.com/token",
		Secret:   "shared-secret",
	})
	require.NoError(t, err)

	decoded, err := Decode(assertion.Assertion)
	require.NoError(t, err)
	assert.Equal(t, "HS256", decoded.Algorithm())

	// The signature is the double Base64 encoding of the raw digest:
	// base64url over the standard Base64 text of the HMAC.
	mac := hmac.New(sha256.New, []byte("shared-secret"))
	mac.Write([]byte(decoded.SigningInput()))
	expected := base64url.EncodeString(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	assert.Equal(t, expected, decoded.Signature)
}

func TestBuildAssertionCustomClaims(t *testing.T) {
	assertion, err := BuildAssertion(AssertionParams{
		ClientID: "my-client",
		Audience: "https://auth.example.com/token",
		Secret:   "s",
		JWTID:    "fixed-jti",
		CustomClaims: map[string]any{
			"aud":    "https://override.example.com",
			"custom": "value",
		},
	})
	require.NoError(t, err)

	decoded, err := Decode(assertion.Assertion)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", decoded.StringClaim("aud"), "custom claims override standard ones")
	assert.Equal(t, "value", decoded.StringClaim("custom"))
	assert.Equal(t, "fixed-jti", decoded.StringClaim("jti"))
}

func TestBuildAssertionValidation(t *testing.T) {
	cert := generateSigningCertificate(t)

	tests := []struct {
		name   string
		params AssertionParams
	}{
		{"neither key material", AssertionParams{ClientID: "c", Audience: "a"}},
		{"both key materials", AssertionParams{ClientID: "c", Audience: "a", Certificate: cert, Secret: "s"}},
		{"missing client id", AssertionParams{Audience: "a", Secret: "s"}},
		{"missing audience", AssertionParams{ClientID: "c", Secret: "s"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := BuildAssertion(test.params)
			assert.Error(t, err)
		})
	}
}

func TestThumbprint(t *testing.T) {
	cert := generateSigningCertificate(t)
	thumb := cert.Thumbprint()
	assert.NotEmpty(t, thumb)
	assert.NotContains(t, thumb, "=")

	noCert := &SigningCertificate{PrivateKey: cert.PrivateKey}
	assert.Empty(t, noCert.Thumbprint())
}

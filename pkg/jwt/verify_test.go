package jwt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authkit/pkg/base64url"
)

func signRS256(t *testing.T, cert *SigningCertificate, claims map[string]any, kid string) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims(claims))
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(cert.PrivateKey)
	require.NoError(t, err)
	return signed
}

func TestVerifyWithPublicKey(t *testing.T) {
	cert := generateSigningCertificate(t)
	token := signRS256(t, cert, map[string]any{"sub": "user"}, "")

	verifier := NewVerifier()

	t.Run("valid signature", func(t *testing.T) {
		valid, err := verifier.Verify(context.Background(), token, WithPublicKey(&cert.PrivateKey.PublicKey))
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("tampered payload fails without error", func(t *testing.T) {
		segments := strings.Split(token, ".")
		segments[1] = base64url.Encode([]byte(`{"sub":"attacker"}`))
		tampered := strings.Join(segments, ".")

		valid, err := verifier.Verify(context.Background(), tampered, WithPublicKey(&cert.PrivateKey.PublicKey))
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("wrong key fails without error", func(t *testing.T) {
		other := generateSigningCertificate(t)
		valid, err := verifier.Verify(context.Background(), token, WithPublicKey(&other.PrivateKey.PublicKey))
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestVerifyWithCertificate(t *testing.T) {
	cert := generateSigningCertificate(t)
	token := signRS256(t, cert, map[string]any{"sub": "user"}, "")

	verifier := NewVerifier()
	valid, err := verifier.Verify(context.Background(), token, WithCertificate(cert.Certificate))
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestVerifyHMAC(t *testing.T) {
	assertion, err := BuildAssertion(AssertionParams{
		ClientID: "c",
		Audience: "a",
		Secret:   "shared-secret",
	})
	require.NoError(t, err)

	verifier := NewVerifier()

	t.Run("correct secret", func(t *testing.T) {
		valid, err := verifier.Verify(context.Background(), assertion.Assertion, WithSecret("shared-secret"))
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		valid, err := verifier.Verify(context.Background(), assertion.Assertion, WithSecret("other-secret"))
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("any signature mutation fails", func(t *testing.T) {
		segments := strings.Split(assertion.Assertion, ".")
		sig := []byte(segments[2])
		for i := 0; i < len(sig); i += 7 {
			mutated := make([]byte, len(sig))
			copy(mutated, sig)
			if mutated[i] == 'A' {
				mutated[i] = 'B'
			} else {
				mutated[i] = 'A'
			}
			token := segments[0] + "." + segments[1] + "." + string(mutated)

			valid, err := verifier.Verify(context.Background(), token, WithSecret("shared-secret"))
			require.NoError(t, err)
			assert.False(t, valid, "mutation at offset %d must not verify", i)
		}
	})
}

func TestVerifyStructuralErrors(t *testing.T) {
	verifier := NewVerifier()

	t.Run("unsigned token", func(t *testing.T) {
		token := compact(`{"alg":"none"}`, `{"sub":"x"}`)
		_, err := verifier.Verify(context.Background(), token)

		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		cert := generateSigningCertificate(t)
		token := compact(`{"alg":"XX999"}`, `{"sub":"x"}`, "c2ln")

		_, err := verifier.Verify(context.Background(), token, WithPublicKey(&cert.PrivateKey.PublicKey))

		var algErr *UnsupportedAlgorithmError
		require.ErrorAs(t, err, &algErr)
		assert.Equal(t, "XX999", algErr.Algorithm)
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := verifier.Verify(context.Background(), "garbage")
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestVerifyWithDiscovery(t *testing.T) {
	cert := generateSigningCertificate(t)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			json.NewEncoder(w).Encode(map[string]string{"jwks_uri": server.URL + "/jwks"})
		case "/jwks":
			pub := cert.PrivateKey.PublicKey
			json.NewEncoder(w).Encode(KeySet{Keys: []JWK{{
				Kty: "RSA",
				Kid: "signing-key",
				N:   base64url.Encode(pub.N.Bytes()),
				E:   base64url.Encode([]byte{0x01, 0x00, 0x01}),
			}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	verifier := NewVerifier()

	t.Run("key resolved by kid", func(t *testing.T) {
		token := signRS256(t, cert, map[string]any{"iss": server.URL, "sub": "u"}, "signing-key")

		valid, err := verifier.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("unknown kid fails resolution", func(t *testing.T) {
		token := signRS256(t, cert, map[string]any{"iss": server.URL}, "other-key")

		_, err := verifier.Verify(context.Background(), token)

		var keyErr *KeyResolutionError
		require.ErrorAs(t, err, &keyErr)
		assert.Equal(t, "other-key", keyErr.KeyID)
	})

	t.Run("missing issuer fails resolution", func(t *testing.T) {
		token := signRS256(t, cert, map[string]any{"sub": "u"}, "signing-key")

		_, err := verifier.Verify(context.Background(), token)

		var keyErr *KeyResolutionError
		assert.ErrorAs(t, err, &keyErr)
	})
}

func TestVerifyWithInjectedKeySetFetcher(t *testing.T) {
	cert := generateSigningCertificate(t)
	pub := cert.PrivateKey.PublicKey

	fetcherCalls := 0
	verifier := NewVerifier(WithKeySetFetcher(func(ctx context.Context, issuer string) (*KeySet, error) {
		fetcherCalls++
		assert.Equal(t, "https://issuer.example.com", issuer)
		return &KeySet{Keys: []JWK{{
			Kty: "RSA",
			Kid: "k1",
			N:   base64url.Encode(pub.N.Bytes()),
			E:   base64url.Encode([]byte{0x01, 0x00, 0x01}),
		}}}, nil
	}))

	token := signRS256(t, cert, map[string]any{"iss": "https://issuer.example.com"}, "k1")
	valid, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, 1, fetcherCalls)
}

package jwt

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authkit/pkg/base64url"
)

func TestLoadSigningCertificate(t *testing.T) {
	cert := generateSigningCertificate(t)

	writePEM := func(t *testing.T, blocks ...*pem.Block) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "key.pem")
		f, err := os.Create(path)
		require.NoError(t, err)
		defer f.Close()
		for _, block := range blocks {
			require.NoError(t, pem.Encode(f, block))
		}
		return path
	}

	keyBlock := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(cert.PrivateKey)}
	certBlock := &pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate.Raw}

	t.Run("key and certificate", func(t *testing.T) {
		path := writePEM(t, certBlock, keyBlock)

		loaded, err := LoadSigningCertificate(path)
		require.NoError(t, err)
		assert.NotNil(t, loaded.PrivateKey)
		require.NotNil(t, loaded.Certificate)
		assert.Equal(t, cert.Thumbprint(), loaded.Thumbprint())
	})

	t.Run("key only", func(t *testing.T) {
		path := writePEM(t, keyBlock)

		loaded, err := LoadSigningCertificate(path)
		require.NoError(t, err)
		assert.NotNil(t, loaded.PrivateKey)
		assert.Nil(t, loaded.Certificate)
	})

	t.Run("pkcs8 key", func(t *testing.T) {
		der, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
		require.NoError(t, err)
		path := writePEM(t, &pem.Block{Type: "PRIVATE KEY", Bytes: der})

		loaded, err := LoadSigningCertificate(path)
		require.NoError(t, err)
		assert.NotNil(t, loaded.PrivateKey)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSigningCertificate(filepath.Join(t.TempDir(), "nope.pem"))

		var certErr *CertificateResolutionError
		assert.ErrorAs(t, err, &certErr)
	})

	t.Run("no key in file", func(t *testing.T) {
		path := writePEM(t, certBlock)

		_, err := LoadSigningCertificate(path)
		var certErr *CertificateResolutionError
		assert.ErrorAs(t, err, &certErr)
	})
}

func TestJWKPublicKey(t *testing.T) {
	t.Run("rsa", func(t *testing.T) {
		cert := generateSigningCertificate(t)
		pub := cert.PrivateKey.PublicKey

		jwk := JWK{
			Kty: "RSA",
			N:   base64url.Encode(pub.N.Bytes()),
			E:   base64url.Encode([]byte{0x01, 0x00, 0x01}),
		}

		key, err := jwk.PublicKey()
		require.NoError(t, err)
		rsaKey, ok := key.(*rsa.PublicKey)
		require.True(t, ok)
		assert.Zero(t, rsaKey.N.Cmp(pub.N))
		assert.Equal(t, 65537, rsaKey.E)
	})

	t.Run("ec", func(t *testing.T) {
		// A point on P-256; coordinates are 32-byte big-endian values.
		jwk := JWK{
			Kty: "EC",
			Crv: "P-256",
			X:   base64url.Encode(make([]byte, 32)),
			Y:   base64url.Encode(make([]byte, 32)),
		}

		key, err := jwk.PublicKey()
		require.NoError(t, err)
		_, ok := key.(*ecdsa.PublicKey)
		assert.True(t, ok)
	})

	t.Run("unknown kty", func(t *testing.T) {
		jwk := JWK{Kty: "OKP"}
		_, err := jwk.PublicKey()
		assert.Error(t, err)
	})

	t.Run("unknown curve", func(t *testing.T) {
		jwk := JWK{Kty: "EC", Crv: "secp256k1"}
		_, err := jwk.PublicKey()
		assert.Error(t, err)
	})
}

func TestKeySetByKID(t *testing.T) {
	set := &KeySet{Keys: []JWK{{Kid: "a"}, {Kid: "b"}}}

	require.NotNil(t, set.ByKID("b"))
	assert.Equal(t, "b", set.ByKID("b").Kid)
	assert.Nil(t, set.ByKID("missing"))
}

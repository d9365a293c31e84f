package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"authkit/pkg/base64url"
)

// SigningCertificate bundles an RSA private key with its optional X.509
// certificate for private_key_jwt client authentication. When a certificate
// is present, assertions carry its x5t thumbprint in the header.
type SigningCertificate struct {
	// PrivateKey signs the assertion.
	PrivateKey *rsa.PrivateKey

	// Certificate is the certificate matching the private key, if any.
	Certificate *x509.Certificate

	// KeyID is an optional kid header value.
	KeyID string
}

// Thumbprint returns the base64url-encoded SHA-1 hash of the DER certificate
// (the x5t header value per RFC 7515 §4.1.7), or "" without a certificate.
func (c *SigningCertificate) Thumbprint() string {
	if c.Certificate == nil {
		return ""
	}
	sum := sha1.Sum(c.Certificate.Raw)
	return base64url.Encode(sum[:])
}

// LoadSigningCertificate reads PEM-encoded key material from a file. The
// file must contain an RSA private key (PKCS#1 or PKCS#8) and may contain
// the matching certificate. A path that yields no usable key fails with
// *CertificateResolutionError.
func LoadSigningCertificate(path string) (*SigningCertificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CertificateResolutionError{Path: path, Err: err}
	}

	sc := &SigningCertificate{}
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, &CertificateResolutionError{Path: path, Err: err}
			}
			sc.Certificate = cert
		case "RSA PRIVATE KEY", "PRIVATE KEY":
			key, err := parseRSAPrivateKey(block)
			if err != nil {
				return nil, &CertificateResolutionError{Path: path, Err: err}
			}
			sc.PrivateKey = key
		}
	}

	if sc.PrivateKey == nil {
		return nil, &CertificateResolutionError{Path: path}
	}
	return sc, nil
}

// ParseSigningKeyPEM parses a PEM-encoded RSA private key from memory,
// delegating to the golang-jwt helper.
func ParseSigningKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	key, err := jwtv5.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	return key, nil
}

func parseRSAPrivateKey(block *pem.Block) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unable to parse RSA private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

// JWK is a single JSON Web Key as published in a JWKS document (RFC 7517).
// Only the members needed to reconstruct RSA and EC public keys are mapped.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid,omitempty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`

	// RSA members.
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC members.
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// KeySet is a JSON Web Key Set.
type KeySet struct {
	Keys []JWK `json:"keys"`
}

// ByKID returns the key with the given kid, or nil when absent.
func (s *KeySet) ByKID(kid string) *JWK {
	for i := range s.Keys {
		if s.Keys[i].Kid == kid {
			return &s.Keys[i]
		}
	}
	return nil
}

// PublicKey reconstructs the Go public key from the JWK members.
func (k *JWK) PublicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaPublicKey()
	case "EC":
		return k.ecdsaPublicKey()
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}

func (k *JWK) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64url.Decode(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid RSA modulus: %w", err)
	}
	eBytes, err := base64url.Decode(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid RSA exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 0 {
		return nil, fmt.Errorf("invalid RSA exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

func (k *JWK) ecdsaPublicKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported EC curve %q", k.Crv)
	}

	xBytes, err := base64url.Decode(k.X)
	if err != nil {
		return nil, fmt.Errorf("invalid EC x coordinate: %w", err)
	}
	yBytes, err := base64url.Decode(k.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

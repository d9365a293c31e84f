package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"authkit/pkg/base64url"
)

// unreservedAlphabet is the character set used for PKCE code verifiers and
// for state/nonce values: the RFC 3986 unreserved characters, which RFC 7636
// §4.1 prescribes for code verifiers.
const unreservedAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

const (
	// VerifierMinLength and VerifierMaxLength bound the PKCE code verifier
	// length per RFC 7636 §4.1.
	VerifierMinLength = 43
	VerifierMaxLength = 128

	stateMinLength = 16
	stateMaxLength = 21

	nonceMinLength = 32
	nonceMaxLength = 64
)

// PKCE challenge methods.
const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "plain"
)

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) verifier and
// challenge pair. It is immutable once generated and used for exactly one
// authorization request.
type PKCEChallenge struct {
	// CodeVerifier is the random secret, 43-128 characters from the
	// unreserved alphabet. Never transmitted in the authorization request.
	CodeVerifier string

	// CodeChallenge is derived from the verifier and sent in the
	// authorization request.
	CodeChallenge string

	// CodeChallengeMethod is "S256" or "plain".
	CodeChallengeMethod string
}

// GeneratePKCE generates a new PKCE challenge with a verifier of random
// length between 43 and 128 characters and an S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	n, err := randomInt(VerifierMinLength, VerifierMaxLength)
	if err != nil {
		return nil, fmt.Errorf("failed to choose verifier length: %w", err)
	}
	return GeneratePKCEWithLength(n)
}

// GeneratePKCEWithLength generates a PKCE challenge with a verifier of the
// given length, which must be within [43, 128].
func GeneratePKCEWithLength(length int) (*PKCEChallenge, error) {
	if length < VerifierMinLength || length > VerifierMaxLength {
		return nil, fmt.Errorf("verifier length %d out of range [%d, %d]", length, VerifierMinLength, VerifierMaxLength)
	}

	verifier, err := randomUnreserved(length)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       S256Challenge(verifier),
		CodeChallengeMethod: ChallengeMethodS256,
	}, nil
}

// S256Challenge computes the S256 code challenge for a verifier:
// base64url(SHA-256(ASCII bytes of verifier)).
func S256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64url.Encode(hash[:])
}

// GenerateState generates a random state parameter of 16-21 characters.
// The state links the authorization response back to the request and
// protects against CSRF.
func GenerateState() (string, error) {
	n, err := randomInt(stateMinLength, stateMaxLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return randomUnreserved(n)
}

// GenerateNonce generates a random nonce of 32-64 characters, echoed in an
// ID token to prevent replay.
func GenerateNonce() (string, error) {
	n, err := randomInt(nonceMinLength, nonceMaxLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return randomUnreserved(n)
}

// randomUnreserved returns a random string of the given length drawn from
// the unreserved alphabet using crypto/rand.
func randomUnreserved(length int) (string, error) {
	alphabetLen := big.NewInt(int64(len(unreservedAlphabet)))
	out := make([]byte, length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = unreservedAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// randomInt returns a uniformly random integer in [min, max].
func randomInt(min, max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return min + int(n.Int64()), nil
}

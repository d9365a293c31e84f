package oauth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	t.Run("verifier length and alphabet", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			pkce, err := GeneratePKCE()
			require.NoError(t, err)

			assert.GreaterOrEqual(t, len(pkce.CodeVerifier), VerifierMinLength)
			assert.LessOrEqual(t, len(pkce.CodeVerifier), VerifierMaxLength)

			for _, c := range pkce.CodeVerifier {
				assert.Contains(t, unreservedAlphabet, string(c),
					"verifier must only contain unreserved characters")
			}
		}
	})

	t.Run("challenge matches verifier", func(t *testing.T) {
		pkce, err := GeneratePKCE()
		require.NoError(t, err)

		assert.Equal(t, S256Challenge(pkce.CodeVerifier), pkce.CodeChallenge)
		assert.Equal(t, ChallengeMethodS256, pkce.CodeChallengeMethod)
	})

	t.Run("verifiers are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			pkce, err := GeneratePKCE()
			require.NoError(t, err)
			assert.False(t, seen[pkce.CodeVerifier], "verifier collision")
			seen[pkce.CodeVerifier] = true
		}
	})
}

func TestGeneratePKCEWithLength(t *testing.T) {
	t.Run("exact length", func(t *testing.T) {
		for _, length := range []int{43, 64, 128} {
			pkce, err := GeneratePKCEWithLength(length)
			require.NoError(t, err)
			assert.Len(t, pkce.CodeVerifier, length)
		}
	})

	t.Run("out of range rejected", func(t *testing.T) {
		_, err := GeneratePKCEWithLength(42)
		assert.Error(t, err)

		_, err = GeneratePKCEWithLength(129)
		assert.Error(t, err)
	})
}

func TestS256Challenge(t *testing.T) {
	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", S256Challenge(verifier))

	// No padding characters in the output.
	assert.False(t, strings.Contains(S256Challenge("another-verifier-another-verifier-another-v"), "="))
}

func TestGenerateState(t *testing.T) {
	for i := 0; i < 50; i++ {
		state, err := GenerateState()
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(state), stateMinLength)
		assert.LessOrEqual(t, len(state), stateMaxLength)
		for _, c := range state {
			assert.Contains(t, unreservedAlphabet, string(c))
		}
	}
}

func TestGenerateNonce(t *testing.T) {
	for i := 0; i < 50; i++ {
		nonce, err := GenerateNonce()
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(nonce), nonceMinLength)
		assert.LessOrEqual(t, len(nonce), nonceMaxLength)
		for _, c := range nonce {
			assert.Contains(t, unreservedAlphabet, string(c))
		}
	}
}

package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"authkit/pkg/oauth"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"generic error", errors.New("boom"), ExitCodeError},
		{"authorization error", &oauth.AuthorizationError{Code: "access_denied"}, ExitCodeAuthFailed},
		{"state mismatch", &oauth.StateMismatchError{}, ExitCodeAuthFailed},
		{"nonce mismatch", &oauth.NonceMismatchError{}, ExitCodeAuthFailed},
		{"timeout", &oauth.TimeoutError{Operation: "callback"}, ExitCodeAuthFailed},
		{"wrapped authorization error", fmt.Errorf("login: %w", &oauth.AuthorizationError{Code: "server_error"}), ExitCodeAuthFailed},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, getExitCode(test.err))
		})
	}
}

func TestRootCommandStructure(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, expected := range []string{"login", "device", "token", "decode", "verify", "version"} {
		assert.True(t, names[expected], "missing subcommand %s", expected)
	}
}

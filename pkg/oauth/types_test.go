package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		name         string
		responseType string
		scope        string
		expected     Protocol
	}{
		{"code without openid", "code", "profile email", ProtocolOAuth},
		{"code with openid", "code", "openid profile", ProtocolOIDC},
		{"openid as substring only", "code", "openidconnect", ProtocolOAuth},
		{"implicit token", "token", "openid", ProtocolOAuth},
		{"implicit id_token", "id_token", "", ProtocolOIDC},
		{"hybrid", "code id_token", "", ProtocolOIDC},
		{"hybrid with token", "code id_token token", "profile", ProtocolOIDC},
		{"empty", "", "", ProtocolOAuth},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, DetectProtocol(test.responseType, test.scope))
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Run("no expiry never expires", func(t *testing.T) {
		token := &Token{AccessToken: "x"}
		assert.False(t, token.IsExpired())
	})

	t.Run("expired token", func(t *testing.T) {
		token := &Token{AccessToken: "x", ExpiresAt: time.Now().Add(-time.Minute)}
		assert.True(t, token.IsExpired())
	})

	t.Run("margin counts as expired", func(t *testing.T) {
		token := &Token{AccessToken: "x", ExpiresAt: time.Now().Add(10 * time.Second)}
		assert.True(t, token.IsExpired(), "expiring within the default margin")
		assert.False(t, token.IsExpiredWithMargin(0))
	})

	t.Run("SetExpiresAtFromExpiresIn", func(t *testing.T) {
		token := &Token{AccessToken: "x", ExpiresIn: 3600}
		token.SetExpiresAtFromExpiresIn()
		assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

		// Does not overwrite an existing ExpiresAt.
		fixed := time.Now().Add(time.Minute)
		token2 := &Token{ExpiresIn: 3600, ExpiresAt: fixed}
		token2.SetExpiresAtFromExpiresIn()
		assert.Equal(t, fixed, token2.ExpiresAt)
	})
}

func TestTokenScopes(t *testing.T) {
	token := &Token{Scope: "openid profile email"}
	assert.Equal(t, []string{"openid", "profile", "email"}, token.Scopes())

	empty := &Token{}
	assert.Nil(t, empty.Scopes())
}

func TestToOAuth2Token(t *testing.T) {
	token := &Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		IDToken:      "idtok",
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	converted := token.ToOAuth2Token()
	assert.Equal(t, "access", converted.AccessToken)
	assert.Equal(t, "Bearer", converted.TokenType)
	assert.Equal(t, "refresh", converted.RefreshToken)
	assert.Equal(t, "idtok", converted.Extra("id_token"))
}

func TestMetadataSupportsPKCE(t *testing.T) {
	assert.True(t, (&Metadata{}).SupportsPKCE(), "unspecified means supported")
	assert.True(t, (&Metadata{CodeChallengeMethodsSupported: []string{"plain", "S256"}}).SupportsPKCE())
	assert.False(t, (&Metadata{CodeChallengeMethodsSupported: []string{"plain"}}).SupportsPKCE())
}

func TestDeviceAuthorizationPollInterval(t *testing.T) {
	assert.Equal(t, 5*time.Second, (&DeviceAuthorization{}).PollInterval())
	assert.Equal(t, 10*time.Second, (&DeviceAuthorization{Interval: 10}).PollInterval())
}

func TestStateMismatchErrorOmitsValues(t *testing.T) {
	err := &StateMismatchError{Expected: "secret-state", Received: "other"}
	assert.NotContains(t, err.Error(), "secret-state")
	assert.NotContains(t, err.Error(), "other")
}

func TestAuthorizationErrorMessage(t *testing.T) {
	err := &AuthorizationError{Code: "access_denied", Description: "user said no"}
	assert.Contains(t, err.Error(), "access_denied")
	assert.Contains(t, err.Error(), "user said no")

	bare := &AuthorizationError{Code: "server_error"}
	assert.Equal(t, "authorization failed: server_error", bare.Error())
}

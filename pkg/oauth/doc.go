// Package oauth implements the client side of OAuth 2.0 and OpenID Connect:
// PKCE and state/nonce generation, protocol detection, server metadata
// discovery with caching, token endpoint requests for the standard grants,
// and the RFC 8628 device authorization flow.
//
// The package is transport-level only. Interactive flows that drive a
// browser and a loopback receiver live in internal/flow and build on the
// primitives here.
package oauth

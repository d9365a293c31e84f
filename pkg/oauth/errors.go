package oauth

import "fmt"

// AuthorizationError carries the structured error triplet reported by an
// authorization or token endpoint (RFC 6749 §4.1.2.1 / §5.2). The fields are
// surfaced verbatim to the caller and never retried at this layer.
type AuthorizationError struct {
	// Code is the OAuth error code (e.g. "access_denied").
	Code string
	// Description is the human-readable error_description, if supplied.
	Description string
	// URI is the error_uri, if supplied.
	URI string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s - %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// StateMismatchError indicates the state echoed in an authorization response
// did not match the state sent in the request. This is a CSRF defense and is
// always fatal; a result carrying it must be rejected.
type StateMismatchError struct {
	Expected string
	Received string
}

// Error implements the error interface. The state values are deliberately
// not included in the message.
func (e *StateMismatchError) Error() string {
	return "state mismatch - possible CSRF attack"
}

// NonceMismatchError indicates an ID token's nonce claim did not match the
// nonce sent in the request. Always fatal, never suppressed.
type NonceMismatchError struct {
	Expected string
	Received string
}

// Error implements the error interface.
func (e *NonceMismatchError) Error() string {
	return "id_token nonce mismatch - possible replay"
}

// TimeoutError indicates the loopback receiver did not observe a response
// within its deadline.
type TimeoutError struct {
	Operation string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Operation)
}

// ProtocolError indicates a server response matched none of the expected
// authorization response shapes.
type ProtocolError struct {
	Reason string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

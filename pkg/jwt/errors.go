package jwt

import "fmt"

// ValidationError reports input that fails the compact-serialization shape
// check before any decoding is attempted.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "jwt validation failed: " + e.Reason
}

// DecodeError reports a structurally malformed JWT segment. Always fatal to
// the operation, never retried.
type DecodeError struct {
	Segment string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("jwt decode failed: %s segment: %v", e.Segment, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedAlgorithmError reports a JWT alg header value outside the
// supported set (RS*, PS*, ES*, HS256).
type UnsupportedAlgorithmError struct {
	Algorithm string
}

// Error implements the error interface.
func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported signing algorithm %q", e.Algorithm)
}

// KeyResolutionError reports that no verification key could be found in the
// provided material or in the issuer's published key set.
type KeyResolutionError struct {
	Issuer string
	KeyID  string
	Reason string
}

// Error implements the error interface.
func (e *KeyResolutionError) Error() string {
	if e.KeyID != "" {
		return fmt.Sprintf("no verification key for kid %q at issuer %q: %s", e.KeyID, e.Issuer, e.Reason)
	}
	return fmt.Sprintf("no verification key at issuer %q: %s", e.Issuer, e.Reason)
}

// CertificateResolutionError reports that a certificate or key path/identifier
// did not resolve to usable key material.
type CertificateResolutionError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CertificateResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no certificate or key found at %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("no certificate or key found at %q", e.Path)
}

// Unwrap returns the underlying resolution error.
func (e *CertificateResolutionError) Unwrap() error {
	return e.Err
}

// Package base64url implements the URL-safe, unpadded Base64 variant used
// throughout JWT compact serialization and PKCE (RFC 4648 §5, RFC 7515
// appendix C).
package base64url

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeError reports malformed base64url input. It is always fatal to the
// operation that produced it and is never retried.
type DecodeError struct {
	Input  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("base64url: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("base64url: %s", e.Reason)
}

// Unwrap returns the underlying decode error, if any.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode encodes raw bytes as unpadded, URL-safe base64.
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// EncodeString encodes the UTF-8 bytes of s as unpadded, URL-safe base64.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode decodes a base64url string to raw bytes.
//
// Both padded and unpadded input is accepted, as is input produced with the
// standard alphabet (`+`, `/`). Padding is reconstructed from the input
// length: a remainder of 1 has no valid base64 source and fails.
func Decode(s string) ([]byte, error) {
	normalized, err := normalize(s)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, &DecodeError{Input: s, Reason: "malformed input", Err: err}
	}
	return data, nil
}

// DecodeString decodes a base64url string and interprets the result as UTF-8 text.
func DecodeString(s string) (string, error) {
	data, err := Decode(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// normalize maps the URL-safe alphabet back to the standard one and re-pads
// the input to a multiple of four characters.
func normalize(s string) (string, error) {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")

	switch len(s) % 4 {
	case 0:
		// Already aligned.
	case 2:
		s += "=="
	case 3:
		s += "="
	default:
		return "", &DecodeError{Input: s, Reason: "invalid input length (remainder 1)"}
	}
	return s, nil
}

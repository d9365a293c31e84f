// Package jwt implements the compact JWT operations this client engine
// needs: decoding without verification, client-assertion building for
// JWT-based client authentication, and signature verification against
// supplied key material or OIDC discovery metadata.
//
// Token issuance and full claims validation are out of scope; ID tokens are
// decoded only to check protocol invariants (nonce), and assertions are
// signed, not parsed back.
package jwt

import (
	"encoding/json"
	"regexp"
	"strings"

	"authkit/pkg/base64url"
)

// compactShape is the pre-decode shape check for compact JWTs: the header
// segment of any JSON object starts with "eyJ" (or "eyw" for some legacy
// encoders), followed by at least one more dot-separated base64url group.
// The match is case-sensitive.
var compactShape = regexp.MustCompile(`^(eyJ|eyw)[A-Za-z0-9_=-]*(\.[A-Za-z0-9_=-]*){1,2}$`)

// Decoded is a decoded compact JWT. The header and payload maps hold the
// JSON-parsed segments; when a segment is not valid JSON its raw decoded
// text is kept verbatim instead and the map is nil. The signature is kept
// as its original base64url string, unmodified.
type Decoded struct {
	// Header holds the parsed JOSE header (alg, typ, kid, ...).
	Header map[string]any

	// HeaderRaw holds the decoded header text when it was not valid JSON.
	HeaderRaw string

	// Claims holds the parsed payload claims, flattened to top level.
	Claims map[string]any

	// ClaimsRaw holds the decoded payload text when it was not valid JSON.
	ClaimsRaw string

	// Signature is the third segment as it appeared on the wire. Empty for
	// unsigned (two-segment) tokens.
	Signature string

	header  string
	payload string
}

// Decode splits a compact JWT into its segments and decodes each.
//
// Two segments are accepted for unsigned tokens, three for signed ones.
// Each of the first two segments is base64url-decoded and JSON-parsed; a
// segment that is not valid JSON keeps its raw decoded text rather than
// failing. The input must pass the compact shape check first, otherwise a
// *ValidationError is returned before any decoding is attempted.
func Decode(token string) (*Decoded, error) {
	if !compactShape.MatchString(token) {
		return nil, &ValidationError{Reason: "input does not look like a compact JWT"}
	}

	segments := strings.Split(token, ".")
	if len(segments) != 2 && len(segments) != 3 {
		return nil, &ValidationError{Reason: "expected 2 or 3 dot-separated segments"}
	}

	d := &Decoded{
		header:  segments[0],
		payload: segments[1],
	}
	if len(segments) == 3 {
		d.Signature = segments[2]
	}

	headerText, err := base64url.DecodeString(segments[0])
	if err != nil {
		return nil, &DecodeError{Segment: "header", Err: err}
	}
	d.Header, d.HeaderRaw = parseSegment(headerText)

	payloadText, err := base64url.DecodeString(segments[1])
	if err != nil {
		return nil, &DecodeError{Segment: "payload", Err: err}
	}
	d.Claims, d.ClaimsRaw = parseSegment(payloadText)

	return d, nil
}

// parseSegment JSON-parses a decoded segment, falling back to the raw text
// when it is not a JSON object. This path never fails.
func parseSegment(text string) (map[string]any, string) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, text
	}
	return m, ""
}

// SigningInput returns the literal first two dot-joined segments of the
// original token. Verification must operate on these exact bytes;
// re-serializing the decoded JSON breaks signatures from servers with a
// different key ordering.
func (d *Decoded) SigningInput() string {
	return d.header + "." + d.payload
}

// Get addresses the merged structure: "header" and "signature" are reserved
// keys resolving to the header map and signature segment; any other name
// resolves to the payload claim, falling back to the header field when the
// payload has no claim of that name.
func (d *Decoded) Get(name string) any {
	switch name {
	case "header":
		return d.Header
	case "signature":
		return d.Signature
	}
	if v, ok := d.Claims[name]; ok {
		return v
	}
	return d.Header[name]
}

// StringClaim returns the named payload claim as a string, or "" when it is
// absent or not a string.
func (d *Decoded) StringClaim(name string) string {
	v, _ := d.Claims[name].(string)
	return v
}

// Algorithm returns the alg header value.
func (d *Decoded) Algorithm() string {
	v, _ := d.Header["alg"].(string)
	return v
}

// KeyID returns the kid header value.
func (d *Decoded) KeyID() string {
	v, _ := d.Header["kid"].(string)
	return v
}

// Issuer returns the iss claim.
func (d *Decoded) Issuer() string {
	return d.StringClaim("iss")
}

// Nonce returns the nonce claim.
func (d *Decoded) Nonce() string {
	return d.StringClaim("nonce")
}

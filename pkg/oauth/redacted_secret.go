package oauth

// RedactedSecret wraps a client secret to prevent accidental logging.
//
// The type implements fmt.Stringer, fmt.GoStringer and the text/JSON
// marshalers to return "[REDACTED]" instead of the actual value, so a secret
// that leaks into a log message, error string, or serialized structure never
// exposes its contents. The wrapped value is revealed just-in-time via
// Reveal() at the point where it is written into a request.
type RedactedSecret struct {
	value string
}

// NewRedactedSecret wraps the given secret value.
func NewRedactedSecret(value string) RedactedSecret {
	return RedactedSecret{value: value}
}

// Reveal returns the actual secret value. Use this only at the point where
// the secret is placed into an HTTP header, request body, or HMAC key.
// Never log the result.
func (s RedactedSecret) Reveal() string {
	return s.value
}

// String implements fmt.Stringer.
func (s RedactedSecret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s RedactedSecret) GoString() string {
	return "oauth.RedactedSecret{[REDACTED]}"
}

// IsEmpty returns true if no secret value is present.
func (s RedactedSecret) IsEmpty() bool {
	return s.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (s RedactedSecret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON implements json.Marshaler.
func (s RedactedSecret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalYAML implements yaml.Marshaler so config dumps stay redacted.
func (s RedactedSecret) MarshalYAML() (interface{}, error) {
	return "[REDACTED]", nil
}

// UnmarshalText implements encoding.TextUnmarshaler so secrets can be read
// from text-based configuration.
func (s *RedactedSecret) UnmarshalText(text []byte) error {
	s.value = string(text)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler for YAML configuration files.
func (s *RedactedSecret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}
	s.value = value
	return nil
}

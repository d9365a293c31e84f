package base64url

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty", nil, ""},
		{"single byte", []byte{0xfb}, "-w"},
		{"two bytes", []byte{0xfb, 0xff}, "-_8"},
		{"three bytes", []byte{0xfb, 0xff, 0xfe}, "-__-"},
		{"text", []byte("hello world"), "aGVsbG8gd29ybGQ"},
		{"json header", []byte(`{"alg":"RS256","typ":"JWT"}`), "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.input))
		})
	}
}

func TestEncode_NoPaddingOrUnsafeChars(t *testing.T) {
	// 0xfb 0xef stresses the characters that differ between alphabets.
	for i := 0; i < 8; i++ {
		input := bytes.Repeat([]byte{0xfb, 0xef, 0xbe}, i+1)[:i+1]
		encoded := Encode(input)
		assert.NotContains(t, encoded, "+")
		assert.NotContains(t, encoded, "/")
		assert.NotContains(t, encoded, "=")
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	// Cover zero length and every length class mod 3.
	inputs := [][]byte{
		{},
		{0x00},
		{0xff, 0x01},
		{0xde, 0xad, 0xbe},
		{0xde, 0xad, 0xbe, 0xef},
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		[]byte("any carnal pleasure."),
	}

	for _, input := range inputs {
		decoded, err := Decode(Encode(input))
		require.NoError(t, err)
		assert.Equal(t, input, decoded)
	}
}

func TestDecode_AcceptsPaddedAndStandardAlphabet(t *testing.T) {
	decoded, err := DecodeString("aGVsbG8gd29ybGQ=")
	require.NoError(t, err)
	assert.Equal(t, "hello world", decoded)

	// Standard alphabet input decodes to the same bytes as its URL-safe form.
	std, err := Decode("-_8")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfb, 0xff}, std)
}

func TestDecode_InvalidLength(t *testing.T) {
	_, err := Decode("aaaaa")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, decodeErr.Reason, "remainder 1")
}

func TestDecode_MalformedInput(t *testing.T) {
	_, err := Decode("not*valid!")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.NotNil(t, decodeErr.Unwrap())
}

func TestDecodeString_Text(t *testing.T) {
	out, err := DecodeString("eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9")
	require.NoError(t, err)
	assert.Equal(t, `{"alg":"RS256","typ":"JWT"}`, out)
}

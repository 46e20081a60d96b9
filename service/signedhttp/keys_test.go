package signedhttp

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKeypair(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	reference := NewKeypair(seed)

	flagged := append([]byte{0x00}, seed[:]...)
	var testCases = []struct {
		description string
		input       string
	}{
		{
			description: "hex",
			input:       reference.PrivateKeyHex(),
		},
		{
			description: "hex with 0x prefix",
			input:       "0x" + reference.PrivateKeyHex(),
		},
		{
			description: "base64 std",
			input:       base64.StdEncoding.EncodeToString(seed[:]),
		},
		{
			description: "base64url without padding",
			input:       base64.RawURLEncoding.EncodeToString(seed[:]),
		},
		{
			description: "flagged ed25519 export",
			input:       base64.StdEncoding.EncodeToString(flagged),
		},
		{
			description: "surrounding whitespace",
			input:       "  " + reference.PrivateKeyHex() + "\n",
		},
	}

	for _, testCase := range testCases {
		parsed, err := ParseKeypair(testCase.input)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, reference.PublicKeyHex(), parsed.PublicKeyHex(), testCase.description)
	}
}

func TestParseKeypair_Errors(t *testing.T) {
	var testCases = []struct {
		description string
		input       string
	}{
		{
			description: "empty",
			input:       "",
		},
		{
			description: "truncated hex",
			input:       "0xdeadbeef",
		},
		{
			description: "wrong length",
			input:       base64.StdEncoding.EncodeToString(make([]byte, 16)),
		},
		{
			description: "unsupported scheme flag",
			input:       base64.StdEncoding.EncodeToString(append([]byte{0x01}, make([]byte, 32)...)),
		},
		{
			description: "not a key at all",
			input:       "!!not-base64!!",
		},
	}

	for _, testCase := range testCases {
		_, err := ParseKeypair(testCase.input)
		assert.NotNil(t, err, testCase.description)
	}
}

func TestKeypair_SeedRoundTrip(t *testing.T) {
	generated, err := GenerateKeypair()
	assert.Nil(t, err)
	restored := NewKeypair(generated.PrivateKeyBytes())
	assert.Equal(t, generated.PublicKeyBytes(), restored.PublicKeyBytes())
}

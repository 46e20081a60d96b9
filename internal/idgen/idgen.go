package idgen

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// New returns a new globally unique identifier as string. It is implemented
// as a thin wrapper so tests can stub it.

var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// NonceFunc returns a fresh url-safe nonce. Override in tests for determinism.
var NonceFunc = func() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// Nonce returns 16 random bytes encoded as unpadded base64url.
func Nonce() string { return NonceFunc() }

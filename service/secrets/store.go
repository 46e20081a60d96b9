package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeyLen is the AES-256 key length in bytes.
	KeyLen = 32
	// NonceLen is the AES-GCM nonce length in bytes.
	NonceLen = 12

	encPrefix   = "enc:v1:"
	plainPrefix = "plain:v1:"
)

// ErrKeyUnavailable reports an encrypted envelope read while the key
// provider yields no key.
var ErrKeyUnavailable = errors.New("encryption key unavailable")

// Key is a 32-byte AES-256 key.
type Key = [KeyLen]byte

// KeyProvider supplies an optional encryption key. A nil key opts into
// plaintext storage on write and rejects encrypted envelopes on read with
// ErrKeyUnavailable.
type KeyProvider interface {
	Key() (*Key, error)
}

// Codec encodes and decodes the plaintext value to bytes. The indirection
// keeps the envelope a single string while the inner value stays typed.
type Codec interface {
	Encode(value interface{}) ([]byte, error)
	Decode(data []byte, target interface{}) error
}

// JSONCodec is the default codec.
type JSONCodec struct{}

func (JSONCodec) Encode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Decode(data []byte, target interface{}) error {
	return json.Unmarshal(data, target)
}

// Store seals values into single-string envelopes and opens them back.
//
// Format (v1):
//   - plain:v1:base64(encoded)
//   - enc:v1:base64(nonce || ciphertext || tag)
//
// The envelope records no key id and no AAD; context binding and key
// rotation are owned by the caller.
type Store struct {
	provider KeyProvider
	codec    Codec
}

// Option customises a store.
type Option func(*Store)

// WithKeyProvider sets the key provider.
func WithKeyProvider(provider KeyProvider) Option {
	return func(s *Store) {
		s.provider = provider
	}
}

// WithCodec sets the plaintext codec.
func WithCodec(codec Codec) Option {
	return func(s *Store) {
		s.codec = codec
	}
}

// New creates a store. Without options it stores plaintext envelopes
// encoded as JSON.
func New(options ...Option) *Store {
	result := &Store{
		provider: &NoKey{},
		codec:    JSONCodec{},
	}
	for _, option := range options {
		option(result)
	}
	return result
}

// Seal encodes value and wraps it into an envelope string. A fresh nonce
// is drawn on every call, so two envelopes of the same value differ.
func (s *Store) Seal(value interface{}) (string, error) {
	plaintext, err := s.codec.Encode(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode secret: %w", err)
	}
	key, err := s.provider.Key()
	if err != nil {
		return "", fmt.Errorf("key provider failure: %w", err)
	}
	if key == nil {
		return plainPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
	}

	var nonce [NonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to draw nonce: %w", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, nonce[:], plaintext, nil)

	buffer := make([]byte, 0, NonceLen+len(sealed))
	buffer = append(buffer, nonce[:]...)
	buffer = append(buffer, sealed...)
	return encPrefix + base64.StdEncoding.EncodeToString(buffer), nil
}

// Open decodes an envelope string into target, decrypting when needed.
func (s *Store) Open(envelope string, target interface{}) error {
	if rest, ok := strings.CutPrefix(envelope, plainPrefix); ok {
		plaintext, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return fmt.Errorf("failed to decode envelope: %w", err)
		}
		return s.codec.Decode(plaintext, target)
	}

	rest, ok := strings.CutPrefix(envelope, encPrefix)
	if !ok {
		return fmt.Errorf("unknown secret encoding")
	}
	decoded, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}
	if len(decoded) < NonceLen {
		return fmt.Errorf("ciphertext too short")
	}
	key, err := s.provider.Key()
	if err != nil {
		return fmt.Errorf("key provider failure: %w", err)
	}
	if key == nil {
		return ErrKeyUnavailable
	}
	aead, err := newAEAD(key)
	if err != nil {
		return err
	}
	plaintext, err := aead.Open(nil, decoded[:NonceLen], decoded[NonceLen:], nil)
	if err != nil {
		return fmt.Errorf("failed to decrypt envelope: %w", err)
	}
	return s.codec.Decode(plaintext, target)
}

func newAEAD(key *Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init AEAD: %w", err)
	}
	return aead, nil
}

// Secret wraps a sensitive value so human facing formatters cannot leak
// it. Persistence goes through Store.Seal and Store.Open explicitly.
type Secret[T any] struct {
	value T
}

// NewSecret wraps a value.
func NewSecret[T any](value T) Secret[T] {
	return Secret[T]{value: value}
}

// Get returns the wrapped value.
func (s Secret[T]) Get() T {
	return s.value
}

// Set replaces the wrapped value.
func (s *Secret[T]) Set(value T) {
	s.value = value
}

func (s Secret[T]) String() string {
	return "[Redacted]"
}

func (s Secret[T]) GoString() string {
	return "Secret([Redacted])"
}

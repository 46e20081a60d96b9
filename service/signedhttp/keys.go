package signedhttp

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Keypair holds Ed25519 signing key material used for message signing.
// These keys authorize off-chain HTTP messages only; they are not chain
// transaction keys.
type Keypair struct {
	private ed25519.PrivateKey
}

// GenerateKeypair draws a fresh Ed25519 signing key.
func GenerateKeypair() (*Keypair, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Keypair{private: private}, nil
}

// NewKeypair wraps a 32-byte Ed25519 seed.
func NewKeypair(seed [32]byte) *Keypair {
	return &Keypair{private: ed25519.NewKeyFromSeed(seed[:])}
}

// ParseKeypair parses a private key from its common encodings:
//   - hex, 64 chars, optional 0x prefix
//   - base64 or base64url, with or without padding, of 32 raw bytes
//   - keytool format base64(0x00 || seed32), the 0x00 scheme flag marks
//     an Ed25519 key
func ParseKeypair(raw string) (*Keypair, error) {
	raw = strings.TrimSpace(raw)
	noPrefix := strings.TrimPrefix(raw, "0x")

	looksLikeHex := strings.HasPrefix(raw, "0x") ||
		((len(noPrefix) == 64 || len(noPrefix) == 66) && isHex(noPrefix))
	if looksLikeHex {
		decoded, err := hex.DecodeString(noPrefix)
		if err != nil {
			return nil, fmt.Errorf("invalid hex private key: %w", err)
		}
		return keypairFromRaw(decoded)
	}

	for _, encoding := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		decoded, err := encoding.DecodeString(raw)
		if err != nil {
			continue
		}
		return keypairFromRaw(decoded)
	}
	return nil, fmt.Errorf("invalid private key: expected hex or base64/base64url data")
}

func keypairFromRaw(decoded []byte) (*Keypair, error) {
	switch len(decoded) {
	case ed25519.SeedSize:
		return &Keypair{private: ed25519.NewKeyFromSeed(decoded)}, nil
	case ed25519.SeedSize + 1:
		if decoded[0] != 0x00 {
			return nil, fmt.Errorf("unsupported key scheme flag 0x%02x (expected 0x00 for ed25519)", decoded[0])
		}
		return &Keypair{private: ed25519.NewKeyFromSeed(decoded[1:])}, nil
	default:
		return nil, fmt.Errorf("invalid private key length %d, expected 32 bytes (raw ed25519) or 33 bytes (0x00 + key)", len(decoded))
	}
}

// PrivateKey returns the underlying signing key.
func (k *Keypair) PrivateKey() ed25519.PrivateKey {
	return k.private
}

// PrivateKeyBytes returns the raw 32-byte seed.
func (k *Keypair) PrivateKeyBytes() [32]byte {
	var seed [32]byte
	copy(seed[:], k.private.Seed())
	return seed
}

// PublicKeyBytes returns the raw 32-byte public key.
func (k *Keypair) PublicKeyBytes() [32]byte {
	var publicKey [32]byte
	copy(publicKey[:], k.private.Public().(ed25519.PublicKey))
	return publicKey
}

// PrivateKeyHex hex-encodes the 32-byte seed.
func (k *Keypair) PrivateKeyHex() string {
	seed := k.PrivateKeyBytes()
	return hex.EncodeToString(seed[:])
}

// PublicKeyHex hex-encodes the 32-byte public key.
func (k *Keypair) PublicKeyHex() string {
	publicKey := k.PublicKeyBytes()
	return hex.EncodeToString(publicKey[:])
}

func isHex(value string) bool {
	for _, ch := range value {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return len(value) > 0
}

package secrets

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/viant/scy"
	"golang.org/x/crypto/hkdf"
)

// EnvPassphrase is the environment variable holding the store passphrase.
const EnvPassphrase = "NEXUS_STORE_PASSPHRASE"

// hkdfSalt and hkdfInfo pin the passphrase derivation so the same
// passphrase always yields the same store key.
var (
	hkdfSalt = []byte("nexus.secret_store.v1")
	hkdfInfo = []byte("store-key")
)

// NoKey always yields no key, opting into plaintext storage.
type NoKey struct{}

func (*NoKey) Key() (*Key, error) {
	return nil, nil
}

// StaticKey yields a fixed key, useful for tests and for callers that
// manage key material themselves.
type StaticKey struct {
	key Key
}

// NewStaticKey creates a provider around raw key material.
func NewStaticKey(key Key) *StaticKey {
	return &StaticKey{key: key}
}

func (p *StaticKey) Key() (*Key, error) {
	key := p.key
	return &key, nil
}

// EnvMode controls how the environment provider treats a missing
// passphrase.
type EnvMode string

const (
	// EnvModeOff never encrypts, even when a passphrase is set.
	EnvModeOff EnvMode = "off"
	// EnvModeAuto encrypts when a passphrase is set and falls back to
	// plaintext otherwise.
	EnvModeAuto EnvMode = "auto"
	// EnvModeRequire fails when no passphrase is set.
	EnvModeRequire EnvMode = "require"
)

// EnvKey derives the store key from a passphrase environment variable
// with HKDF-SHA256.
type EnvKey struct {
	variable string
	mode     EnvMode
}

// NewEnvKey creates an environment passphrase provider. An empty variable
// name falls back to EnvPassphrase.
func NewEnvKey(variable string, mode EnvMode) *EnvKey {
	if variable == "" {
		variable = EnvPassphrase
	}
	if mode == "" {
		mode = EnvModeAuto
	}
	return &EnvKey{variable: variable, mode: mode}
}

func (p *EnvKey) Key() (*Key, error) {
	if p.mode == EnvModeOff {
		return nil, nil
	}
	passphrase := os.Getenv(p.variable)
	if passphrase == "" {
		if p.mode == EnvModeRequire {
			return nil, fmt.Errorf("passphrase variable %v is not set", p.variable)
		}
		return nil, nil
	}
	return deriveKey([]byte(passphrase))
}

// ScyKey loads the key material with the scy secret service and derives
// the store key from it.
type ScyKey struct {
	service   *scy.Service
	sourceURL string
	key       string
}

// NewScyKey creates a scy backed provider. The key argument names the scy
// encryption key, e.g. 'blowfish://default'.
func NewScyKey(sourceURL, key string) *ScyKey {
	return &ScyKey{
		service:   scy.New(),
		sourceURL: sourceURL,
		key:       key,
	}
}

func (p *ScyKey) Key() (*Key, error) {
	resource := scy.NewResource(nil, p.sourceURL, p.key)
	secret, err := p.service.Load(context.Background(), resource)
	if err != nil {
		return nil, fmt.Errorf("failed to load key material from %v: %w", p.sourceURL, err)
	}
	return deriveKey([]byte(secret.String()))
}

func deriveKey(material []byte) (*Key, error) {
	reader := hkdf.New(sha256.New, material, hkdfSalt, hkdfInfo)
	key := &Key{}
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive store key: %w", err)
	}
	return key, nil
}

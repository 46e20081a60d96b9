package secrets

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func staticStore() *Store {
	return New(WithKeyProvider(NewStaticKey(Key{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7})))
}

func TestStore_PlaintextRoundTrip(t *testing.T) {
	store := New()
	envelope, err := store.Seal(payload{A: 1, B: "x"})
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(envelope, "plain:v1:"))

	actual := payload{}
	assert.Nil(t, store.Open(envelope, &actual))
	assert.Equal(t, payload{A: 1, B: "x"}, actual)
}

func TestStore_EncryptedRoundTrip(t *testing.T) {
	store := staticStore()

	first, err := store.Seal(payload{A: 1, B: "x"})
	assert.Nil(t, err)
	second, err := store.Seal(payload{A: 1, B: "x"})
	assert.Nil(t, err)

	assert.True(t, strings.HasPrefix(first, "enc:v1:"))
	assert.NotEqual(t, first, second, "nonce should randomize ciphertext")

	for _, envelope := range []string{first, second} {
		actual := payload{}
		assert.Nil(t, store.Open(envelope, &actual))
		assert.Equal(t, payload{A: 1, B: "x"}, actual)
	}
}

func TestStore_OpenErrors(t *testing.T) {
	store := staticStore()
	envelope, err := store.Seal(payload{A: 9, B: "abc"})
	assert.Nil(t, err)

	t.Run("tampered envelope fails authentication", func(t *testing.T) {
		tampered := []byte(envelope)
		tampered[len(tampered)-2] ^= 'x'
		actual := payload{}
		assert.NotNil(t, store.Open(string(tampered), &actual))
	})

	t.Run("encrypted envelope without a key", func(t *testing.T) {
		actual := payload{}
		assert.ErrorIs(t, New().Open(envelope, &actual), ErrKeyUnavailable)
	})

	t.Run("unknown prefix", func(t *testing.T) {
		actual := payload{}
		assert.NotNil(t, store.Open("v2:whatever", &actual))
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		actual := payload{}
		assert.NotNil(t, store.Open("enc:v1:AAAA", &actual))
	})
}

func TestEnvKey(t *testing.T) {
	t.Run("off ignores the passphrase", func(t *testing.T) {
		t.Setenv(EnvPassphrase, "opensesame")
		key, err := NewEnvKey("", EnvModeOff).Key()
		assert.Nil(t, err)
		assert.Nil(t, key)
	})

	t.Run("auto without passphrase stays plaintext", func(t *testing.T) {
		t.Setenv(EnvPassphrase, "")
		key, err := NewEnvKey("", EnvModeAuto).Key()
		assert.Nil(t, err)
		assert.Nil(t, key)
	})

	t.Run("require without passphrase fails", func(t *testing.T) {
		t.Setenv(EnvPassphrase, "")
		_, err := NewEnvKey("", EnvModeRequire).Key()
		assert.NotNil(t, err)
	})

	t.Run("derivation is deterministic", func(t *testing.T) {
		t.Setenv(EnvPassphrase, "opensesame")
		first, err := NewEnvKey("", EnvModeAuto).Key()
		assert.Nil(t, err)
		second, err := NewEnvKey("", EnvModeRequire).Key()
		assert.Nil(t, err)
		if assert.NotNil(t, first) && assert.NotNil(t, second) {
			assert.Equal(t, *first, *second)
		}
	})
}

func TestSecret_Redacted(t *testing.T) {
	secret := NewSecret("hunter2")
	assert.Equal(t, "[Redacted]", secret.String())
	assert.Equal(t, "[Redacted]", fmt.Sprintf("%v", secret))
	assert.Equal(t, "Secret([Redacted])", fmt.Sprintf("%#v", secret))
	assert.Equal(t, "hunter2", secret.Get())
}

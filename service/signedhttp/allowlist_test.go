package signedhttp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAllowedLeaders(t *testing.T) {
	document := `{
  "version": 1,
  "leaders": [
    {
      "leader_id": "leader-1",
      "keys": [
        {"kid": 1, "public_key": "8a88e3dd7409f195fd52db2d3cba5d72ca6709bf1d94121bf3748801b40f6f5c"},
        {"kid": 2, "public_key": "0101010101010101010101010101010101010101010101010101010101010101"}
      ]
    },
    {
      "leader_id": "leader-2",
      "keys": [
        {"kid": 1, "public_key": "0202020202020202020202020202020202020202020202020202020202020202"}
      ]
    }
  ]
}`
	allowed, err := ParseAllowedLeaders([]byte(document))
	if !assert.Nil(t, err) {
		return
	}

	key, ok := allowed.InvokerPublicKey("leader-1", 2)
	assert.True(t, ok)
	assert.Equal(t, byte(0x01), key[0])

	_, ok = allowed.InvokerPublicKey("leader-1", 3)
	assert.False(t, ok)
	_, ok = allowed.InvokerPublicKey("leader-3", 1)
	assert.False(t, ok)
}

func TestParseAllowedLeaders_Errors(t *testing.T) {
	var testCases = []struct {
		description string
		document    string
	}{
		{
			description: "unsupported version",
			document:    `{"version": 2, "leaders": []}`,
		},
		{
			description: "invalid hex",
			document:    `{"version": 1, "leaders": [{"leader_id": "l", "keys": [{"kid": 1, "public_key": "zz"}]}]}`,
		},
		{
			description: "short key",
			document:    `{"version": 1, "leaders": [{"leader_id": "l", "keys": [{"kid": 1, "public_key": "0101"}]}]}`,
		},
		{
			description: "not JSON",
			document:    `leaders:`,
		},
	}
	for _, testCase := range testCases {
		_, err := ParseAllowedLeaders([]byte(testCase.document))
		assert.NotNil(t, err, testCase.description)
	}
}

func TestLoadAllowedLeaders(t *testing.T) {
	location := filepath.Join(t.TempDir(), "allowed_leaders.json")
	document := `{"version": 1, "leaders": [{"leader_id": "leader-1", "keys": [{"kid": 1, "public_key": "0303030303030303030303030303030303030303030303030303030303030303"}]}]}`
	assert.Nil(t, os.WriteFile(location, []byte(document), 0o644))

	allowed, err := LoadAllowedLeaders(context.Background(), location)
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, location, allowed.SourceURL())
	key, ok := allowed.InvokerPublicKey("leader-1", 1)
	assert.True(t, ok)
	assert.Equal(t, byte(0x03), key[31])

	_, err = LoadAllowedLeaders(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.NotNil(t, err)
}

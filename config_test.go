package nexus

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/nexus/service/host"
)

func TestLoadConfig(t *testing.T) {
	URL := filepath.Join(t.TempDir(), "config.yaml")
	content := `
version: 1
invoke_max_body_bytes: 1048576
signed_http:
  mode: required
  max_clock_skew_ms: 5000
  allowed_leaders:
    version: 1
    leaders:
      - leader_id: leader-1
        keys:
          - kid: 1
            public_key: "abababababababababababababababababababababababababababababababab"
  tools:
    xyz.example.echo@1:
      tool_kid: 7
      tool_signing_key: "0101010101010101010101010101010101010101010101010101010101010101"
events:
  graphql_url: https://indexer.example.com/graphql
  packages:
    primitives: "0x01"
    interface: "0x02"
    workflow: "0x03"
`
	assert.Nil(t, os.WriteFile(URL, []byte(content), 0o644))

	config, err := LoadConfig(context.Background(), URL)
	assert.Nil(t, err)
	assert.EqualValues(t, 1048576, config.InvokeMaxBodyBytes)
	assert.True(t, config.SignedHTTP.Required())
	assert.EqualValues(t, 5000, config.Policy().MaxClockSkewMs)
	assert.EqualValues(t, 60_000, config.Policy().MaxValidityMs)
	assert.EqualValues(t, 7, config.SignedHTTP.Tools["xyz.example.echo@1"].Kid)
	assert.Equal(t, "0x01", string(config.Events.Packages.Primitives))

	allowed, err := config.SignedHTTP.AllowedLeaders.Decode()
	assert.Nil(t, err)
	key, ok := allowed.InvokerPublicKey("leader-1", 1)
	assert.True(t, ok)
	assert.Equal(t, bytes.Repeat([]byte{0xab}, 32), key)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NotNil(t, err)
}

func TestConfig_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		config      *Config
		valid       bool
	}{
		{
			description: "defaults",
			config:      DefaultConfig(),
			valid:       true,
		},
		{
			description: "unsupported version",
			config:      &Config{Version: 2, InvokeMaxBodyBytes: host.DefaultMaxBodyBytes},
			valid:       false,
		},
		{
			description: "non-positive body limit",
			config:      &Config{Version: 1},
			valid:       false,
		},
		{
			description: "signed http disabled",
			config: &Config{Version: 1, InvokeMaxBodyBytes: 1,
				SignedHTTP: &SignedHTTPConfig{Mode: SignedHTTPDisabled}},
			valid: true,
		},
		{
			description: "required without tool keys",
			config: &Config{Version: 1, InvokeMaxBodyBytes: 1,
				SignedHTTP: &SignedHTTPConfig{Mode: SignedHTTPRequired}},
			valid: false,
		},
		{
			description: "required with empty signing key",
			config: &Config{Version: 1, InvokeMaxBodyBytes: 1,
				SignedHTTP: &SignedHTTPConfig{Mode: SignedHTTPRequired,
					Tools: map[string]*ToolKey{"tool": {Kid: 1}}}},
			valid: false,
		},
		{
			description: "invalid mode",
			config: &Config{Version: 1, InvokeMaxBodyBytes: 1,
				SignedHTTP: &SignedHTTPConfig{Mode: "maybe"}},
			valid: false,
		},
		{
			description: "events without graphql url",
			config: &Config{Version: 1, InvokeMaxBodyBytes: 1,
				Events: &EventsConfig{}},
			valid: false,
		},
	}

	for _, testCase := range testCases {
		err := testCase.config.Validate()
		if testCase.valid {
			assert.Nil(t, err, testCase.description)
		} else {
			assert.NotNil(t, err, testCase.description)
		}
	}
}

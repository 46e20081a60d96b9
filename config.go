package nexus

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/nexus/service/event"
	"github.com/viant/nexus/service/host"
	"github.com/viant/nexus/service/signedhttp"
	"gopkg.in/yaml.v3"
)

// Signed HTTP operation modes.
const (
	SignedHTTPDisabled = "disabled"
	SignedHTTPRequired = "required"
)

// ConfigVersion is the runtime configuration schema version.
const ConfigVersion = 1

// ToolKey holds the signing identity of a hosted tool.
type ToolKey struct {
	Kid        uint64 `json:"tool_kid" yaml:"tool_kid"`
	SigningKey string `json:"tool_signing_key" yaml:"tool_signing_key"`
}

// SignedHTTPConfig configures request authentication for hosted tools.
// Tools maps a tool FQN to its signing key. The leader allowlist comes
// either inline or from a URL; the inline form wins when both are set.
type SignedHTTPConfig struct {
	Mode              string                         `json:"mode" yaml:"mode"`
	MaxClockSkewMs    uint64                         `json:"max_clock_skew_ms,omitempty" yaml:"max_clock_skew_ms,omitempty"`
	MaxValidityMs     uint64                         `json:"max_validity_ms,omitempty" yaml:"max_validity_ms,omitempty"`
	AllowedLeaders    *signedhttp.AllowedLeadersFile `json:"allowed_leaders,omitempty" yaml:"allowed_leaders,omitempty"`
	AllowedLeadersURL string                         `json:"allowed_leaders_url,omitempty" yaml:"allowed_leaders_url,omitempty"`
	Tools             map[string]*ToolKey            `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Required reports whether invoke requests have to be signed.
func (c *SignedHTTPConfig) Required() bool {
	return c != nil && c.Mode == SignedHTTPRequired
}

// EventsConfig configures the on-chain event fetcher.
type EventsConfig struct {
	GraphQLURL        string         `json:"graphql_url" yaml:"graphql_url"`
	Packages          event.Packages `json:"packages" yaml:"packages"`
	ChannelCapacity   int            `json:"channel_capacity,omitempty" yaml:"channel_capacity,omitempty"`
	MaxPollIntervalMs uint64         `json:"max_poll_interval_ms,omitempty" yaml:"max_poll_interval_ms,omitempty"`
}

// Config is the runtime configuration.
type Config struct {
	Version            int               `json:"version" yaml:"version"`
	InvokeMaxBodyBytes int64             `json:"invoke_max_body_bytes,omitempty" yaml:"invoke_max_body_bytes,omitempty"`
	SignedHTTP         *SignedHTTPConfig `json:"signed_http,omitempty" yaml:"signed_http,omitempty"`
	Events             *EventsConfig     `json:"events,omitempty" yaml:"events,omitempty"`
}

// DefaultConfig returns a configuration with default values: unsigned
// invokes, 10 MiB body limit and no event fetcher.
func DefaultConfig() *Config {
	return &Config{
		Version:            ConfigVersion,
		InvokeMaxBodyBytes: host.DefaultMaxBodyBytes,
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Version != ConfigVersion {
		return fmt.Errorf("unsupported config version: %d", c.Version)
	}
	if c.InvokeMaxBodyBytes <= 0 {
		return fmt.Errorf("invoke_max_body_bytes was not positive: %d", c.InvokeMaxBodyBytes)
	}
	if c.SignedHTTP != nil {
		switch c.SignedHTTP.Mode {
		case SignedHTTPDisabled:
		case SignedHTTPRequired:
			if len(c.SignedHTTP.Tools) == 0 {
				return fmt.Errorf("signed_http.mode is %q but no tool keys were configured", SignedHTTPRequired)
			}
			for fqn, key := range c.SignedHTTP.Tools {
				if key == nil || key.SigningKey == "" {
					return fmt.Errorf("tool %q has no signing key", fqn)
				}
			}
		default:
			return fmt.Errorf("invalid signed_http.mode: %q", c.SignedHTTP.Mode)
		}
	}
	if c.Events != nil {
		if c.Events.GraphQLURL == "" {
			return fmt.Errorf("events.graphql_url was empty")
		}
		if c.Events.Packages.Primitives == "" {
			return fmt.Errorf("events.packages.primitives was empty")
		}
	}
	return nil
}

// Policy derives the signed HTTP verification policy, falling back to
// defaults for unset fields.
func (c *Config) Policy() signedhttp.Policy {
	policy := signedhttp.DefaultPolicy()
	if c.SignedHTTP == nil {
		return policy
	}
	if c.SignedHTTP.MaxClockSkewMs != 0 {
		policy.MaxClockSkewMs = c.SignedHTTP.MaxClockSkewMs
	}
	if c.SignedHTTP.MaxValidityMs != 0 {
		policy.MaxValidityMs = c.SignedHTTP.MaxValidityMs
	}
	return policy
}

// LoadConfig reads a YAML or JSON configuration from the URL and
// validates it. Fields left unset keep their defaults.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %v: %w", URL, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return config, nil
}

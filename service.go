package nexus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/viant/nexus/service/event"
	"github.com/viant/nexus/service/host"
	"github.com/viant/nexus/service/secrets"
	"github.com/viant/nexus/service/signedhttp"
)

// Service assembles the toolkit subsystems from a runtime configuration:
// the signed HTTP engine, tool hosting, the event fetcher and the secret
// store.
type Service struct {
	config  *Config
	engine  *signedhttp.Engine
	replay  signedhttp.ReplayStore
	allowed *signedhttp.AllowedLeaders
	secrets *secrets.Store
	client  *http.Client

	mux      sync.Mutex
	keypairs map[string]*signedhttp.Keypair
}

// New creates a service with the supplied options. Unset collaborators
// get defaults: an in-memory replay store, an environment-keyed secret
// store and the default HTTP client.
func New(options ...Option) *Service {
	result := &Service{}
	result.init(options)
	return result
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
}

func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.engine == nil {
		s.engine = signedhttp.NewEngine(s.config.Policy())
	}
	if s.replay == nil {
		s.replay = signedhttp.NewMemoryReplayStore()
	}
	if s.secrets == nil {
		s.secrets = secrets.New()
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.keypairs == nil {
		s.keypairs = map[string]*signedhttp.Keypair{}
	}
}

// Config returns the runtime configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Engine returns the signed HTTP engine.
func (s *Service) Engine() *signedhttp.Engine {
	return s.engine
}

// SecretStore returns the at-rest secret store.
func (s *Service) SecretStore() *secrets.Store {
	return s.secrets
}

// Invoker derives a leader-side invoker from the engine.
func (s *Service) Invoker(leaderID string, kid uint64, keypair *signedhttp.Keypair) *signedhttp.Invoker {
	return s.engine.Invoker(leaderID, kid, keypair)
}

// Responder builds a responder for the tool using its configured signing
// key and the leader allowlist. When signed HTTP is disabled the
// responder is nil and invokes are served unsigned.
func (s *Service) Responder(ctx context.Context, toolFQN string) (*signedhttp.Responder, error) {
	if !s.config.SignedHTTP.Required() {
		return nil, nil
	}
	keypair, err := s.toolKeypair(toolFQN)
	if err != nil {
		return nil, err
	}
	allowed, err := s.allowedLeaders(ctx)
	if err != nil {
		return nil, err
	}
	kid := s.config.SignedHTTP.Tools[toolFQN].Kid
	return s.engine.Responder(toolFQN, kid, keypair, allowed, s.replay), nil
}

// Host mounts the tools with responders wired per configuration and
// returns the assembled host.
func (s *Service) Host(ctx context.Context, tools ...host.Tool) (*host.Host, error) {
	hosted := host.New(host.WithMaxBodyBytes(s.config.InvokeMaxBodyBytes))
	for _, tool := range tools {
		responder, err := s.Responder(ctx, tool.FQN())
		if err != nil {
			return nil, err
		}
		hosted.Mount(tool, responder)
	}
	return hosted, nil
}

// EventFetcher builds the on-chain event fetcher from the events
// configuration.
func (s *Service) EventFetcher() (*event.Fetcher, error) {
	config := s.config.Events
	if config == nil {
		return nil, fmt.Errorf("events were not configured")
	}
	options := []event.Option{event.WithClient(s.client)}
	if config.ChannelCapacity > 0 {
		options = append(options, event.WithChannelCapacity(config.ChannelCapacity))
	}
	if config.MaxPollIntervalMs > 0 {
		options = append(options, event.WithMaxPollInterval(time.Duration(config.MaxPollIntervalMs)*time.Millisecond))
	}
	return event.NewFetcher(config.GraphQLURL, config.Packages, options...), nil
}

func (s *Service) toolKeypair(toolFQN string) (*signedhttp.Keypair, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if keypair, ok := s.keypairs[toolFQN]; ok {
		return keypair, nil
	}
	key, ok := s.config.SignedHTTP.Tools[toolFQN]
	if !ok || key == nil {
		return nil, fmt.Errorf("no signing key configured for tool %q", toolFQN)
	}
	keypair, err := signedhttp.ParseKeypair(key.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key for tool %q: %w", toolFQN, err)
	}
	s.keypairs[toolFQN] = keypair
	return keypair, nil
}

func (s *Service) allowedLeaders(ctx context.Context) (*signedhttp.AllowedLeaders, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.allowed != nil {
		return s.allowed, nil
	}
	config := s.config.SignedHTTP
	if config.AllowedLeaders != nil {
		allowed, err := config.AllowedLeaders.Decode()
		if err != nil {
			return nil, fmt.Errorf("invalid signed_http.allowed_leaders: %w", err)
		}
		s.allowed = allowed
		return allowed, nil
	}
	if config.AllowedLeadersURL == "" {
		return nil, fmt.Errorf("signed_http requires either allowed_leaders or allowed_leaders_url")
	}
	allowed, err := signedhttp.LoadAllowedLeaders(ctx, config.AllowedLeadersURL)
	if err != nil {
		return nil, err
	}
	s.allowed = allowed
	return allowed, nil
}

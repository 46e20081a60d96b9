package nexus

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/viant/nexus/service/secrets"
	"github.com/viant/nexus/service/signedhttp"
	"github.com/viant/nexus/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the service.
type Option func(s *Service)

// WithConfig sets the runtime configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithReplayStore sets the nonce replay store shared by responders.
func WithReplayStore(store signedhttp.ReplayStore) Option {
	return func(s *Service) {
		s.replay = store
	}
}

// WithRedisClient backs the replay store with redis so replay state
// survives restarts and is shared across replicas.
func WithRedisClient(client *redis.Client) Option {
	return func(s *Service) {
		s.replay = signedhttp.NewRedisReplayStore(client)
	}
}

// WithAllowedLeaders sets the leader key allowlist directly instead of
// loading it from signed_http.allowed_leaders_url.
func WithAllowedLeaders(allowed *signedhttp.AllowedLeaders) Option {
	return func(s *Service) {
		s.allowed = allowed
	}
}

// WithSecretStore sets the at-rest secret store.
func WithSecretStore(store *secrets.Store) Option {
	return func(s *Service) {
		s.secrets = store
	}
}

// WithHTTPClient sets the client used for outbound HTTP, including
// event fetcher queries.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, for example OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}

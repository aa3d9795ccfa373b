package server

import (
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/clonex/auth-gateway/instrumentation"
	"github.com/clonex/auth-gateway/providers"
	"github.com/clonex/auth-gateway/security"
	"github.com/clonex/auth-gateway/storage"
)

// safeTruncate safely truncates a string to maxLen characters without
// panicking. Used when logging token and state prefixes.
func safeTruncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Server implements the authorization flow logic (provider-agnostic).
// It coordinates the PKCE flow using a Provider and a verifier store.
type Server struct {
	provider providers.Provider
	store    storage.VerifierStore

	Auditor         *security.Auditor
	RateLimiter     *security.RateLimiter // IP-based rate limiter
	Instrumentation *instrumentation.Instrumentation
	Logger          *slog.Logger
	Config          *Config
}

// New creates a new flow server
func New(
	provider providers.Provider,
	store storage.VerifierStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("verifier store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applySecureDefaults(config, logger)

	return &Server{
		provider: provider,
		store:    store,
		Config:   config,
		Logger:   logger,
	}, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetRateLimiter sets the IP-based rate limiter
func (s *Server) SetRateLimiter(rl *security.RateLimiter) {
	s.RateLimiter = rl
}

// SetInstrumentation sets the OpenTelemetry instrumentation
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.Instrumentation = inst
}

// Provider returns the configured identity provider
func (s *Server) Provider() providers.Provider {
	return s.provider
}

// metrics returns the metrics holder, or nil when instrumentation is unset
func (s *Server) metrics() *instrumentation.Metrics {
	if s.Instrumentation == nil {
		return nil
	}
	return s.Instrumentation.Metrics()
}

// generateRandomToken generates a cryptographically secure random token.
// This is an alias for oauth2.GenerateVerifier() which produces a URL-safe,
// base64-encoded random string suitable for state parameters.
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}
